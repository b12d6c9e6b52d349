package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nikhilbhutani/docreader/internal/completion"
)

// Completer is the subset of *completion.Caller the extraction routes use.
type Completer interface {
	FreeForm(ctx context.Context, input, systemPrompt string) (any, completion.Usage, error)
	Schema(ctx context.Context, req completion.SchemaRequest) (map[string]any, completion.Usage, error)
	Usage() completion.Usage
}

type ExtractHandler struct {
	caller Completer
}

func NewExtractHandler(c Completer) *ExtractHandler {
	return &ExtractHandler{caller: c}
}

type freeFormRequest struct {
	Input        string `json:"input"`
	SystemPrompt string `json:"system_prompt"`
}

type schemaRequest struct {
	Input         string          `json:"input"`
	SystemPrompt  string          `json:"system_prompt"`
	ExtractPrompt string          `json:"extract_prompt"`
	JSONSchema    json.RawMessage `json:"json_schema"`
}

type usageView struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Model            string  `json:"model,omitempty"`
	CostUSD          float64 `json:"cost_usd"`
}

func newUsageView(u completion.Usage) usageView {
	return usageView{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens(),
		Model:            u.Model,
		CostUSD:          u.CostUSD(),
	}
}

type extractResponse struct {
	Output any       `json:"output"`
	Usage  usageView `json:"usage"`
}

func (h *ExtractHandler) FreeForm(w http.ResponseWriter, r *http.Request) {
	var req freeFormRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, usage, err := h.caller.FreeForm(r.Context(), req.Input, req.SystemPrompt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Output: out, Usage: newUsageView(usage)})
}

func (h *ExtractHandler) Schema(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sreq, err := completion.NewSchemaRequest(req.Input, req.SystemPrompt, req.ExtractPrompt, req.JSONSchema)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, usage, err := h.caller.Schema(r.Context(), sreq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Output: out, Usage: newUsageView(usage)})
}

// Usage reports the running totals of the server's caller.
func (h *ExtractHandler) Usage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUsageView(h.caller.Usage()))
}
