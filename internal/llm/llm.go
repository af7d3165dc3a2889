// Package llm defines the language-model backend contract and its
// implementations. Everything above this package talks to the backend only
// through Provider, so tests drive the pipeline with the deterministic stub.
package llm

import "context"

// Request is a single generation request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response is the backend's answer.
type Response struct {
	Text       string
	TokensUsed int
	Model      string
}

// Provider generates text from a prompt pair.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}
