// Package completion issues JSON extraction requests against an Azure OpenAI
// chat deployment and meters the tokens they consume.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/llm"
	"github.com/nikhilbhutani/docreader/internal/retry"
)

const (
	freeFormPrefix = "Extract info from following Context:\n"
	schemaPrefix   = "Extract in JSON format from Input-Context:\n"
	typedPrefix    = "Extract the pydantic information from below context.\nContext: "
)

type Caller struct {
	client     *openai.Client
	deployment string
	policy     retry.Policy
	usage      usageCounter
}

type Option func(*callerOptions)

type callerOptions struct {
	policy     retry.Policy
	httpClient *http.Client
}

// WithRetryPolicy replaces the default 3-attempt policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *callerOptions) { o.policy = p }
}

// WithSleep keeps the retry schedule but replaces how the caller waits.
func WithSleep(s retry.Sleeper) Option {
	return func(o *callerOptions) { o.policy.Sleep = s }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *callerOptions) { o.httpClient = c }
}

// NewCaller checks that every connection setting is present. Nothing is
// dialled until the first call.
func NewCaller(cfg config.AzureOpenAIConfig, opts ...Option) (*Caller, error) {
	if missing := cfg.Missing("AZURE_OPENAI"); len(missing) > 0 {
		return nil, apperr.InvalidRequest("missing completion settings: %s", strings.Join(missing, ", "))
	}

	o := callerOptions{policy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	client := llm.NewAzureClient(cfg, func(oc *openai.ClientConfig) {
		if o.httpClient != nil {
			oc.HTTPClient = o.httpClient
		}
	})
	return &Caller{
		client:     client,
		deployment: cfg.Deployment,
		policy:     o.policy,
	}, nil
}

// Usage returns the cumulative usage of every successful call so far.
func (c *Caller) Usage() Usage { return c.usage.snapshot() }

// FreeForm relies on systemPrompt to ask for JSON; the endpoint is not
// constrained, so any JSON value (object, array or scalar) is accepted.
func (c *Caller) FreeForm(ctx context.Context, input, systemPrompt string) (any, Usage, error) {
	resp, content, err := c.content(ctx, "freeform", messages(systemPrompt, freeFormPrefix+input), nil)
	if err != nil {
		return nil, Usage{}, err
	}
	var out any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, Usage{}, apperr.MalformedResponse(err, "parse freeform response as JSON")
	}
	return out, c.record(resp), nil
}

func (c *Caller) Schema(ctx context.Context, req SchemaRequest) (map[string]any, Usage, error) {
	compiled, err := req.validate()
	if err != nil {
		return nil, Usage{}, err
	}

	var (
		user   string
		format *openai.ChatCompletionResponseFormat
	)
	switch cons := req.Constraint.(type) {
	case ExtractPrompt:
		user = string(cons) + "\n" + schemaPrefix + req.Input
		format = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	case JSONSchema:
		user = schemaPrefix + req.Input
		format = jsonSchemaFormat(cons)
	case *JSONSchema:
		user = schemaPrefix + req.Input
		format = jsonSchemaFormat(*cons)
	}

	var check func([]byte) error
	if compiled != nil {
		check = func(content []byte) error { return validateAgainst(compiled, content) }
	}
	return c.object(ctx, "schema", messages(req.SystemPrompt, user), format, check)
}

func jsonSchemaFormat(js JSONSchema) *openai.ChatCompletionResponseFormat {
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   js.Name,
			Schema: js.Schema,
			Strict: js.Strict,
		},
	}
}

// content returns the completion together with its first choice's text.
func (c *Caller) content(ctx context.Context, mode string, msgs []openai.ChatCompletionMessage, format *openai.ChatCompletionResponseFormat) (openai.ChatCompletionResponse, string, error) {
	resp, err := c.complete(ctx, mode, msgs, format)
	if err != nil {
		return resp, "", err
	}
	content, err := firstContent(resp)
	return resp, content, err
}

// object decodes a response the endpoint was told to shape as a JSON object.
func (c *Caller) object(ctx context.Context, mode string, msgs []openai.ChatCompletionMessage, format *openai.ChatCompletionResponseFormat, check func([]byte) error) (map[string]any, Usage, error) {
	resp, content, err := c.content(ctx, mode, msgs, format)
	if err != nil {
		return nil, Usage{}, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, Usage{}, apperr.MalformedResponse(err, "parse %s response as JSON object", mode)
	}
	if check != nil {
		if err := check([]byte(content)); err != nil {
			return nil, Usage{}, apperr.MalformedResponse(err, "validate %s response", mode)
		}
	}
	return out, c.record(resp), nil
}

// complete performs one logical request, retrying transient failures under
// the caller's policy.
func (c *Caller) complete(ctx context.Context, mode string, msgs []openai.ChatCompletionMessage, format *openai.ChatCompletionResponseFormat) (openai.ChatCompletionResponse, error) {
	reqID := uuid.NewString()
	req := openai.ChatCompletionRequest{
		Model:          c.deployment,
		Messages:       msgs,
		ResponseFormat: format,
	}

	var resp openai.ChatCompletionResponse
	start := time.Now()
	err := retry.Do(ctx, c.policy, llm.IsTransient, func(ctx context.Context, attempt int) error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		if callErr != nil {
			slog.Warn("completion attempt failed",
				"req_id", reqID,
				"mode", mode,
				"attempt", attempt,
				"error", callErr,
			)
		}
		return callErr
	})
	if err != nil {
		return resp, fmt.Errorf("%s completion: %w", mode, err)
	}

	slog.Info("completion done",
		"req_id", reqID,
		"mode", mode,
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *Caller) record(resp openai.ChatCompletionResponse) Usage {
	return c.usage.add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Model)
}

func firstContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", apperr.MalformedResponse(nil, "response has no choices")
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", apperr.MalformedResponse(nil, "model refused: %s", msg.Refusal)
	}
	return msg.Content, nil
}

func messages(system, user string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}
