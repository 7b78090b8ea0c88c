package domain

import "context"

// Completer is the interface all text-completion providers must implement.
// The intent parser is its only consumer; replies are free text that the
// caller parses defensively.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
	Healthy(ctx context.Context) error
}

type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}
