// Package environment looks up variables such as API keys and endpoint
// overrides from the process environment and optional dotenv files.
package environment

import "context"

const (
	BackendURLEnv   = "VOICE_AGENT_BACKEND_URL"
	OpenAIKeyEnv    = "OPENAI_API_KEY"
	GoogleKeyEnv    = "GOOGLE_API_KEY"
	AnthropicKeyEnv = "ANTHROPIC_API_KEY"
)

type Provider interface {
	// Get retrieves the value of an environment variable by name.
	// Returns (value, true) if found (value may be empty).
	// Returns ("", false) if not found.
	Get(ctx context.Context, name string) (string, bool)
}

// Value returns the variable or "" when it is not set anywhere.
func Value(ctx context.Context, p Provider, name string) string {
	v, _ := p.Get(ctx, name)
	return v
}
