package completion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nikhilbhutani/docreader/internal/apperr"
)

// Constraint shapes the output of a schema-constrained extraction. It is
// either an ExtractPrompt or a JSONSchema.
type Constraint interface {
	constraint()
}

// ExtractPrompt is a free-text extraction instruction. The endpoint is asked
// for an unconstrained JSON object.
type ExtractPrompt string

func (ExtractPrompt) constraint() {}

// JSONSchema asks the endpoint to conform its output to Schema.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
	Strict bool
}

func (JSONSchema) constraint() {}

type SchemaRequest struct {
	Input        string
	SystemPrompt string
	Constraint   Constraint
}

// NewSchemaRequest builds a request from two optional constraint values, as
// received from an HTTP body or CLI flags. Exactly one of extractPrompt and
// schema must be set.
//
// schema may be either a bare JSON schema or the response_format wrapper
// {"name": ..., "schema": {...}, "strict": ...}.
func NewSchemaRequest(input, systemPrompt, extractPrompt string, schema json.RawMessage) (SchemaRequest, error) {
	hasPrompt := extractPrompt != ""
	hasSchema := len(bytes.TrimSpace(schema)) > 0 && string(bytes.TrimSpace(schema)) != "null"

	req := SchemaRequest{Input: input, SystemPrompt: systemPrompt}
	switch {
	case hasPrompt && hasSchema:
		return req, apperr.InvalidRequest("must provide exactly one of extract_prompt or json_schema, got both")
	case !hasPrompt && !hasSchema:
		return req, apperr.InvalidRequest("must provide exactly one of extract_prompt or json_schema, got neither")
	case hasPrompt:
		req.Constraint = ExtractPrompt(extractPrompt)
	default:
		js, err := ParseJSONSchema(schema)
		if err != nil {
			return req, err
		}
		req.Constraint = js
	}
	return req, nil
}

// ParseJSONSchema accepts the wrapper or bare form and returns a JSONSchema
// whose schema document compiles.
func ParseJSONSchema(raw json.RawMessage) (JSONSchema, error) {
	var wrapper struct {
		Name   string          `json:"name"`
		Schema json.RawMessage `json:"schema"`
		Strict bool            `json:"strict"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return JSONSchema{}, apperr.InvalidRequest("json_schema is not a JSON object: %v", err)
	}

	js := JSONSchema{Name: "extraction", Schema: raw}
	if wrapper.Name != "" && len(wrapper.Schema) > 0 {
		js = JSONSchema{Name: wrapper.Name, Schema: wrapper.Schema, Strict: wrapper.Strict}
	}
	if _, err := js.compile(); err != nil {
		return JSONSchema{}, err
	}
	return js, nil
}

func (js JSONSchema) compile() (*jsonschema.Schema, error) {
	if len(bytes.TrimSpace(js.Schema)) == 0 {
		return nil, apperr.InvalidRequest("json_schema is empty")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(js.Schema)); err != nil {
		return nil, apperr.InvalidRequest("add json_schema: %v", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, apperr.InvalidRequest("compile json_schema: %v", err)
	}
	return schema, nil
}

// validate checks the request before any network traffic. It returns the
// compiled schema for the JSONSchema variant.
func (r SchemaRequest) validate() (*jsonschema.Schema, error) {
	switch c := r.Constraint.(type) {
	case nil:
		return nil, apperr.InvalidRequest("must provide exactly one of extract_prompt or json_schema, got neither")
	case ExtractPrompt:
		if c == "" {
			return nil, apperr.InvalidRequest("extract_prompt is empty")
		}
		return nil, nil
	case JSONSchema:
		if c.Name == "" {
			return nil, apperr.InvalidRequest("json_schema name is empty")
		}
		return c.compile()
	case *JSONSchema:
		if c == nil {
			return nil, apperr.InvalidRequest("json_schema is nil")
		}
		return SchemaRequest{Constraint: *c}.validate()
	default:
		return nil, apperr.InvalidRequest("unsupported constraint %T", c)
	}
}

func validateAgainst(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
