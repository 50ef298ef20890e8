package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/commuteai/agents/internal/llm"
)

// DeriveSchema reflects the JSON schema of Out for constrained generation.
//
// Nested types are inlined, additional properties are forbidden and every
// field without omitempty is required. The schema is named after the
// output type qualified by its package, e.g. insight.Response becomes
// "InsightResponse", unless the type name already starts with the package
// name.
func DeriveSchema[Out any]() llm.ResponseSchema {
	var zero Out
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
		Anonymous:                 true,
	}
	schema := r.ReflectFromType(t)
	schema.Version = ""
	schema.ID = ""

	return llm.ResponseSchema{
		Name:        SchemaName(t),
		Description: schema.Description,
		Schema:      schema,
		Strict:      true,
	}
}

// SchemaName returns the generation schema name for t.
func SchemaName(t reflect.Type) string {
	name := t.Name()
	pkg := t.PkgPath()
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	if pkg == "" || strings.HasPrefix(strings.ToLower(name), strings.ToLower(pkg)) {
		return name
	}
	return titleCase(pkg) + name
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// compileSchema prepares s for validating assistant output.
func compileSchema(s llm.ResponseSchema) (*schemavalidator.Schema, error) {
	data, err := json.Marshal(s.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", s.Name, err)
	}
	doc, err := schemavalidator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", s.Name, err)
	}

	url := s.Name + ".json"
	c := schemavalidator.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", s.Name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", s.Name, err)
	}
	return compiled, nil
}
