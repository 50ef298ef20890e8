package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by Agent.Execute is an *Error whose Kind
// is one of these, so callers can branch with errors.Is.
var (
	ErrValidation            = errors.New("invalid agent input")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrGenerationRateLimited = errors.New("generation rate limited")
	ErrGenerationRejected    = errors.New("generation rejected")
	ErrProcessing            = errors.New("agent output could not be processed")
)

// Operations recorded in Error.Op.
const (
	OpValidate = "validate"
	OpEnrich   = "enrich"
	OpRender   = "render"
	OpGenerate = "generate"
	OpExtract  = "extract"
	OpParse    = "parse"
	OpSchema   = "schema"
	OpCheck    = "check"
)

// maxExcerpt bounds Error.RawExcerpt.
const maxExcerpt = 512

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is the failure of one agent execution.
type Error struct {
	Kind  error
	Agent string
	Op    string
	Err   error

	// Fields lists rule violations for validation failures of the input
	// or of the parsed output.
	Fields []FieldError

	// RawLength and RawExcerpt describe the assistant content that could
	// not be processed. The excerpt is for logs, never for end users.
	RawLength  int
	RawExcerpt string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Agent)
	b.WriteString(": ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Field + " " + f.Message
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, "; "))
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, agent, op string, err error) *Error {
	return &Error{Kind: kind, Agent: agent, Op: op, Err: err}
}

func processingError(agent, op string, err error, raw string) *Error {
	e := newError(ErrProcessing, agent, op, err)
	e.RawLength = len(raw)
	e.RawExcerpt = excerpt(raw)
	return e
}

func excerpt(raw string) string {
	if len(raw) <= maxExcerpt {
		return raw
	}
	cut := maxExcerpt
	for cut > 0 && !isRuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut] + "…"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
