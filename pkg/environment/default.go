package environment

// NewDefaultProvider reads the process environment first, then the given
// dotenv files in order.
func NewDefaultProvider(envFiles ...string) (Provider, error) {
	providers := []Provider{NewOsEnvProvider()}
	for _, path := range envFiles {
		p, err := NewEnvFileProvider(path)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return NewMultiProvider(providers...), nil
}
