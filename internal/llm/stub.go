// internal/llm/stub.go
package llm

import (
	"context"
	"sync"
	"time"
)

// StubProvider is a deterministic test double. It returns canned responses,
// optionally after a fixed latency, and counts calls so tests can assert
// how often the backend was consulted.
type StubProvider struct {
	Response string
	Err      error
	Latency  time.Duration

	mu    sync.Mutex
	calls int
}

var _ Provider = (*StubProvider)(nil)

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.Err != nil {
		return nil, s.Err
	}
	return &Response{Text: s.Response, TokensUsed: len(s.Response), Model: "stub"}, nil
}

// Calls returns how many times Generate was invoked.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
