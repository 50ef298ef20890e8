// Package agent runs typed LLM agents.
//
// An agent is declared once as a Definition: an input type, an output type,
// a manifest naming its prompt templates and generation parameters, and
// optional enrichment and output checks. Execute then validates the input,
// enriches it, renders the prompts, asks the provider for JSON constrained
// by the schema of the output type and parses the answer back into Out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/commuteai/agents/internal/llm"
	"github.com/commuteai/agents/internal/prompt"
	"github.com/commuteai/agents/internal/telemetry"
)

const tracerName = "github.com/commuteai/agents/internal/agent"

// Definition declares an agent over input In and output Out.
type Definition[In, Out any] struct {
	// Templates holds the manifest and the templates it names.
	Templates fs.FS

	// Enrich returns the input to render prompts from. It must not modify
	// its argument and must not fail; it returns the argument unchanged
	// when there is nothing to add.
	Enrich func(ctx context.Context, in *In) *In

	// Vars adds values derived from the input to the flattened template
	// variables.
	Vars func(in *In, vars map[string]any)

	// Check verifies contracts between input and parsed output that struct
	// tags cannot express.
	Check func(in *In, out *Out) error
}

// Config configures an Agent.
type Config struct {
	Provider  llm.Provider
	Validator *validator.Validate
	Logger    zerolog.Logger
	Tracer    trace.Tracer
}

// Agent executes one Definition. It is safe for concurrent use.
type Agent[In, Out any] struct {
	def      Definition[In, Out]
	manifest Manifest
	schema   llm.ResponseSchema
	compiled *schemavalidator.Schema
	renderer *prompt.Renderer

	provider llm.Provider
	validate *validator.Validate
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// New builds an agent, loading its manifest and templates eagerly.
func New[In, Out any](def Definition[In, Out], cfg Config) (*Agent[In, Out], error) {
	if def.Templates == nil {
		return nil, errors.New("agent templates are required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("agent provider is required")
	}

	manifest, err := LoadManifest(def.Templates)
	if err != nil {
		return nil, err
	}

	renderer := prompt.NewRenderer(def.Templates)
	if err := renderer.Load(manifest.Templates.System, manifest.Templates.User); err != nil {
		return nil, fmt.Errorf("agent %s: %w", manifest.Name, err)
	}

	schema := DeriveSchema[Out]()
	compiled, err := compileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", manifest.Name, err)
	}

	if cfg.Validator == nil {
		cfg.Validator = NewValidator()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.Tracer(tracerName)
	}

	return &Agent[In, Out]{
		def:      def,
		manifest: manifest,
		schema:   schema,
		compiled: compiled,
		renderer: renderer,
		provider: cfg.Provider,
		validate: cfg.Validator,
		logger:   cfg.Logger.With().Str("agent", manifest.Name).Logger(),
		tracer:   cfg.Tracer,
	}, nil
}

// Name returns the manifest name.
func (a *Agent[In, Out]) Name() string {
	return a.manifest.Name
}

// Schema returns the response schema sent with every generation call.
func (a *Agent[In, Out]) Schema() llm.ResponseSchema {
	return a.schema
}

// Execute runs the agent on in. Errors are always *Error.
func (a *Agent[In, Out]) Execute(ctx context.Context, in *In) (*Out, error) {
	ctx, span := a.tracer.Start(ctx, "agent.execute",
		trace.WithAttributes(
			attribute.String("agent.name", a.manifest.Name),
			attribute.String("llm.provider", a.provider.Name()),
		),
	)
	defer span.End()

	out, err := a.execute(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (a *Agent[In, Out]) execute(ctx context.Context, in *In) (*Out, error) {
	if in == nil {
		e := newError(ErrValidation, a.manifest.Name, OpValidate, errors.New("input is required"))
		e.Fields = []FieldError{{Field: "input", Rule: "required", Message: "is required"}}
		return nil, e
	}
	if err := a.validate.StructCtx(ctx, in); err != nil {
		e := newError(ErrValidation, a.manifest.Name, OpValidate, err)
		e.Fields, _ = fieldErrors(err)
		return nil, e
	}

	enriched := in
	if a.def.Enrich != nil {
		if v := a.def.Enrich(ctx, in); v != nil {
			enriched = v
		}
	}

	messages, err := a.messages(enriched)
	if err != nil {
		return nil, newError(ErrProcessing, a.manifest.Name, OpRender, err)
	}

	start := time.Now()
	content, err := a.generate(ctx, messages)
	elapsed := time.Since(start)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("provider", a.provider.Name()).
			Dur("duration", elapsed).
			Msg("generation failed")
		return nil, newError(generationKind(err), a.manifest.Name, OpGenerate, err)
	}

	a.logger.Debug().
		Str("provider", a.provider.Name()).
		Dur("duration", elapsed).
		Int("raw_length", len(content)).
		Msg("generation completed")

	out, err := a.parse(content)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Int("raw_length", len(content)).
			Msg("assistant content rejected")
		a.logger.Debug().
			Str("raw_excerpt", excerpt(content)).
			Msg("rejected assistant content")
		return nil, err
	}

	if a.def.Check != nil {
		if err := a.def.Check(in, out); err != nil {
			return nil, processingError(a.manifest.Name, OpCheck, err, content)
		}
	}

	return out, nil
}

func (a *Agent[In, Out]) messages(in *In) ([]llm.Message, error) {
	vars, err := prompt.Flatten(in)
	if err != nil {
		return nil, err
	}
	if a.def.Vars != nil {
		a.def.Vars(in, vars)
	}

	system, err := a.renderer.Render(a.manifest.Templates.System, vars)
	if err != nil {
		return nil, err
	}
	user, err := a.renderer.Render(a.manifest.Templates.User, vars)
	if err != nil {
		return nil, err
	}

	return []llm.Message{llm.SystemMessage(system), llm.UserMessage(user)}, nil
}

func (a *Agent[In, Out]) generate(ctx context.Context, messages []llm.Message) (string, error) {
	gen := a.manifest.Generation
	opts := []llm.Option{
		llm.WithMaxTokens(gen.maxTokens()),
		llm.WithTemperature(gen.temperature()),
		llm.WithResponseSchema(&a.schema),
	}

	if !gen.Stream {
		return a.provider.Generate(ctx, messages, opts...)
	}

	stream, err := a.provider.GenerateStream(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	return llm.Collect(stream)
}

func (a *Agent[In, Out]) parse(content string) (*Out, error) {
	raw, err := Extract(content)
	if err != nil {
		return nil, processingError(a.manifest.Name, OpExtract, err, content)
	}

	out := new(Out)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, processingError(a.manifest.Name, OpParse, fmt.Errorf("decode %s: %w", a.schema.Name, err), content)
	}

	// json.Unmarshal accepts missing, null and unknown properties; the
	// schema sent to the provider does not.
	doc, err := schemavalidator.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, processingError(a.manifest.Name, OpParse, fmt.Errorf("decode %s: %w", a.schema.Name, err), content)
	}
	if err := a.compiled.Validate(doc); err != nil {
		return nil, processingError(a.manifest.Name, OpSchema, fmt.Errorf("%s: %w", a.schema.Name, err), content)
	}

	if err := a.validate.Struct(out); err != nil {
		e := processingError(a.manifest.Name, OpCheck, err, content)
		e.Fields, _ = fieldErrors(err)
		return nil, e
	}

	return out, nil
}

// generationKind maps provider failures onto agent error kinds.
func generationKind(err error) error {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return ErrGenerationRateLimited
	case errors.Is(err, llm.ErrRejected):
		return ErrGenerationRejected
	default:
		return ErrGenerationUnavailable
	}
}
