// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"io"
	"sync"

	"github.com/commuteai/agents/internal/llm"
)

// Call is one recorded invocation.
type Call struct {
	Messages []llm.Message
	Options  llm.Options
}

// Provider returns Content (or Err) for every call and records the calls.
type Provider struct {
	Content string
	Err     error

	// Chunks, when set, is what GenerateStream yields; otherwise Content is
	// yielded as a single chunk.
	Chunks []string

	mu    sync.Mutex
	calls []Call
}

// NewProvider returns a provider that always answers content.
func NewProvider(content string) *Provider {
	return &Provider{Content: content}
}

// NewFailingProvider returns a provider that always fails with err.
func NewFailingProvider(err error) *Provider {
	return &Provider{Err: err}
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return "fake"
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	p.record(messages, opts)
	if err := ctx.Err(); err != nil {
		return "", llm.NewUnavailableError(p.Name(), err)
	}
	if p.Err != nil {
		return "", p.Err
	}
	return p.Content, nil
}

// GenerateStream implements llm.Provider.
func (p *Provider) GenerateStream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	p.record(messages, opts)
	if err := ctx.Err(); err != nil {
		return nil, llm.NewUnavailableError(p.Name(), err)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	chunks := p.Chunks
	if chunks == nil {
		chunks = []string{p.Content}
	}
	return &stream{chunks: chunks}, nil
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *Provider) record(messages []llm.Message, opts []llm.Option) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.calls = append(p.calls, Call{Messages: msgs, Options: llm.ApplyOptions(opts...)})
}

type stream struct {
	chunks []string
	closed bool
}

func (s *stream) Recv() (string, error) {
	if s.closed || len(s.chunks) == 0 {
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
