package llm

import "context"

type Provider interface {
	// Generate returns the full text completion for one prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}
