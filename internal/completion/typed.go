package completion

import (
	"context"
	"reflect"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/nikhilbhutani/docreader/internal/apperr"
)

// ExtractTyped asks the endpoint for output conforming to the shape of T and
// decodes it into a T. T should be a struct whose fields carry json tags;
// fields are required unless tagged omitempty.
func ExtractTyped[T any](ctx context.Context, c *Caller, input, systemPrompt string) (T, Usage, error) {
	var out T
	schema, err := jsonschema.GenerateSchemaForType(out)
	if err != nil {
		return out, Usage{}, apperr.InvalidRequest("derive response shape for %T: %v", out, err)
	}

	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   shapeName(out),
			Schema: schema,
			Strict: true,
		},
	}

	resp, err := c.complete(ctx, "typed", messages(systemPrompt, typedPrefix+input), format)
	if err != nil {
		return out, Usage{}, err
	}
	content, err := firstContent(resp)
	if err != nil {
		return out, Usage{}, err
	}
	if err := schema.Unmarshal(content, &out); err != nil {
		return out, Usage{}, apperr.MalformedResponse(err, "decode typed response into %T", out)
	}
	return out, c.record(resp), nil
}

func shapeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "response"
	}
	return t.Name()
}
