// Package llm wraps the hosted model providers behind small interfaces so the
// pipeline can be exercised with fakes in tests and the provider swapped by
// configuration.
package llm

import (
	"context"
	"strings"
)

// CompleteOptions are the generation parameters forwarded to the hosted model.
type CompleteOptions struct {
	MaxTokens   int
	Temperature float32
	Stop        []string
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for an assembled prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)
}

// Provider is a hosted model offering both embeddings and text generation.
type Provider interface {
	Embedder
	Generator
	Close() error
}

// CleanCompletion isolates the newly generated continuation from a raw model
// response. Some endpoints echo the input prompt or repeat the answer cue and
// emit stop-sequence markers; only leading echoes are stripped, so an answer
// that happens to mention "Assistant:" in its body stays intact.
func CleanCompletion(prompt, raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, prompt) {
		text = strings.TrimPrefix(text, prompt)
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "Assistant:")

	text = strings.ReplaceAll(text, "</s>", "")
	return strings.TrimSpace(text)
}
