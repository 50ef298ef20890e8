// Package openai implements llm.Provider for OpenAI-compatible chat
// completion APIs such as Groq and OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/commuteai/agents/internal/llm"
	"github.com/commuteai/agents/internal/provider/resilience"
	"github.com/commuteai/agents/internal/telemetry"
)

// Backend presets.
const (
	Groq   = "groq"
	OpenAI = "openai"

	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GroqModel     = "llama-3.3-70b-versatile"
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "gpt-4o-mini"
)

// ResponseFormat selects how a response schema is passed to the backend.
type ResponseFormat string

const (
	// FormatJSONSchema sends the schema as a strict json_schema response format.
	FormatJSONSchema ResponseFormat = "json_schema"

	// FormatJSONObject only asks for a JSON object; the schema stays in the prompt.
	FormatJSONObject ResponseFormat = "json_object"

	// FormatText sends no response format at all.
	FormatText ResponseFormat = "text"
)

var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("missing api key")

	// ErrUnknownBackend is returned by New for a backend name without preset.
	ErrUnknownBackend = errors.New("unknown llm backend")

	// ErrUnknownResponseFormat is returned by New for an unsupported format.
	ErrUnknownResponseFormat = errors.New("unknown response format")
)

// Config holds configuration for the provider.
type Config struct {
	// Backend is Groq or OpenAI; it selects the default base URL and model.
	Backend string

	APIKey  string
	BaseURL string
	Model   string

	// ResponseFormat defaults to FormatJSONSchema.
	ResponseFormat ResponseFormat

	// HTTPClient defaults to a resilient client named after the backend.
	HTTPClient *resilience.Client

	Logger  zerolog.Logger
	Metrics *telemetry.ProviderMetrics
}

// Provider talks to an OpenAI-compatible chat completions endpoint.
type Provider struct {
	client  *goopenai.Client
	backend string
	model   string
	format  ResponseFormat
	logger  zerolog.Logger
	metrics *telemetry.ProviderMetrics
}

// New creates a provider, filling BaseURL and Model from the backend preset.
func New(cfg Config) (*Provider, error) {
	if cfg.Backend == "" {
		cfg.Backend = Groq
	}

	var baseURL, model string
	switch cfg.Backend {
	case Groq:
		baseURL, model = GroqBaseURL, GroqModel
	case OpenAI:
		baseURL, model = OpenAIBaseURL, OpenAIModel
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Backend, ErrMissingAPIKey)
	}

	format := cfg.ResponseFormat
	switch format {
	case "":
		format = FormatJSONSchema
	case FormatJSONSchema, FormatJSONObject, FormatText:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResponseFormat, format)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(cfg.Backend))
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = httpClient

	return &Provider{
		client:  goopenai.NewClientWithConfig(clientCfg),
		backend: cfg.Backend,
		model:   model,
		format:  format,
		logger:  cfg.Logger.With().Str("component", "llm").Str("backend", cfg.Backend).Str("model", model).Logger(),
		metrics: cfg.Metrics,
	}, nil
}

// Name returns the backend name.
func (p *Provider) Name() string {
	return p.backend
}

// Model returns the model requests are sent to.
func (p *Provider) Model() string {
	return p.model
}

// Generate sends one chat completion request and returns the content of the
// first choice. A response without choices yields empty content.
func (p *Provider) Generate(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	req := p.request(messages, llm.ApplyOptions(opts...))

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	p.metrics.RecordRequest(p.backend, "chat_completion", elapsed, err)

	if err != nil {
		classified := p.classify(ctx, err)
		p.logger.Warn().Err(err).Dur("duration", elapsed).Msg("chat completion failed")
		return "", classified
	}

	p.logger.Debug().
		Dur("duration", elapsed).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion finished")

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream opens a streaming chat completion.
func (p *Provider) GenerateStream(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	req := p.request(messages, llm.ApplyOptions(opts...))
	req.Stream = true

	start := time.Now()
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		p.metrics.RecordRequest(p.backend, "chat_completion_stream", time.Since(start), err)
		return nil, p.classify(ctx, err)
	}

	return &chunkStream{provider: p, ctx: ctx, stream: stream, start: start}, nil
}

func (p *Provider) request(messages []llm.Message, opts llm.Options) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	}

	if opts.Schema == nil {
		return req
	}
	switch p.format {
	case FormatJSONSchema:
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:        opts.Schema.Name,
				Description: opts.Schema.Description,
				Schema:      opts.Schema.Schema,
				Strict:      opts.Schema.Strict,
			},
		}
	case FormatJSONObject:
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// classify maps SDK and transport errors onto the llm error kinds.
func (p *Provider) classify(ctx context.Context, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return llm.NewStatusError(p.backend, apiErr.HTTPStatusCode, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.NewStatusError(p.backend, reqErr.HTTPStatusCode, err)
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return llm.NewUnavailableError(p.backend, err)
}

type chunkStream struct {
	provider *Provider
	ctx      context.Context
	stream   *goopenai.ChatCompletionStream
	start    time.Time
	done     bool
}

// Recv skips chunks without content-bearing choices, such as usage chunks.
func (s *chunkStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.finish(nil)
			return "", io.EOF
		}
		if err != nil {
			s.finish(err)
			return "", s.provider.classify(s.ctx, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

func (s *chunkStream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.provider.metrics.RecordRequest(s.provider.backend, "chat_completion_stream", time.Since(s.start), err)
}
