package environment

import "context"

// MultiProvider returns the first non-empty value among its providers.
type MultiProvider struct {
	providers []Provider
}

func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{
		providers: providers,
	}
}

func (p *MultiProvider) Get(ctx context.Context, name string) (string, bool) {
	found := false
	for _, provider := range p.providers {
		value, ok := provider.Get(ctx, name)
		if value != "" {
			return value, true
		}
		found = found || ok
	}

	return "", found
}
