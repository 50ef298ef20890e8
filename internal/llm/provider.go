// Package llm defines the contract between agents and text generation
// backends: chat messages in, assistant text out.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage returns a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ResponseSchema asks the backend to constrain its output to a JSON schema.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      json.Marshaler
	Strict      bool
}

// Options are per-call generation parameters.
type Options struct {
	MaxTokens   int
	Temperature float64
	Schema      *ResponseSchema
}

// Option mutates Options.
type Option func(*Options)

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithResponseSchema requests schema-constrained JSON output.
func WithResponseSchema(schema *ResponseSchema) Option {
	return func(o *Options) { o.Schema = schema }
}

// ApplyOptions folds opts into an Options value.
func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Provider generates assistant text from a list of messages.
//
// Errors returned by implementations match ErrUnavailable, ErrRateLimited
// or ErrRejected under errors.Is.
type Provider interface {
	// Generate returns the complete assistant content.
	Generate(ctx context.Context, messages []Message, opts ...Option) (string, error)

	// GenerateStream returns the assistant content as incremental chunks.
	GenerateStream(ctx context.Context, messages []Message, opts ...Option) (Stream, error)

	// Name identifies the backend in logs and errors.
	Name() string
}

// Stream yields content chunks. Recv returns io.EOF after the last chunk.
// The concatenation of all chunks equals the non-streamed content.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Collect drains s and returns the concatenated content. It closes s.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}
