package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/cache"
	"github.com/nikhilbhutani/docreader/internal/completion"
	"github.com/nikhilbhutani/docreader/internal/models"
	"github.com/nikhilbhutani/docreader/internal/queue"
	"github.com/nikhilbhutani/docreader/internal/reader"
)

type fakeCompleter struct {
	calls  int
	schema completion.SchemaRequest
	err    error
}

func (f *fakeCompleter) FreeForm(_ context.Context, input, _ string) (any, completion.Usage, error) {
	f.calls++
	if f.err != nil {
		return nil, completion.Usage{}, f.err
	}
	return map[string]any{"echo": input}, completion.Usage{PromptTokens: 10, CompletionTokens: 5, Model: "gpt-4o"}, nil
}

func (f *fakeCompleter) Schema(_ context.Context, req completion.SchemaRequest) (map[string]any, completion.Usage, error) {
	f.calls++
	f.schema = req
	return map[string]any{"total": 100.0}, completion.Usage{PromptTokens: 20, CompletionTokens: 5}, nil
}

func (f *fakeCompleter) Usage() completion.Usage {
	return completion.Usage{PromptTokens: 30, CompletionTokens: 10, Model: "gpt-4o"}
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestFreeFormEndpoint(t *testing.T) {
	fc := &fakeCompleter{}
	rec := post(NewExtractHandler(fc).FreeForm, `{"input":"hello","system_prompt":"sys"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Output map[string]any `json:"output"`
		Usage  usageView      `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Output["echo"])
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Greater(t, resp.Usage.CostUSD, 0.0)
}

func TestFreeFormPassesArrayOutputThrough(t *testing.T) {
	fc := &arrayCompleter{}
	rec := post(NewExtractHandler(fc).FreeForm, `{"input":"a b"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Output []map[string]string `json:"output"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []map[string]string{{"name": "a"}, {"name": "b"}}, resp.Output)
}

type arrayCompleter struct{ fakeCompleter }

func (a *arrayCompleter) FreeForm(context.Context, string, string) (any, completion.Usage, error) {
	return []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}, completion.Usage{}, nil
}

func TestFreeFormMapsErrors(t *testing.T) {
	rec := post(NewExtractHandler(&fakeCompleter{err: apperr.MalformedResponse(nil, "not JSON")}).FreeForm, `{"input":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = post(NewExtractHandler(&fakeCompleter{}).FreeForm, `{"input":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(NewExtractHandler(&fakeCompleter{}).FreeForm, ``)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchemaEndpointRequiresExactlyOneConstraint(t *testing.T) {
	fc := &fakeCompleter{}
	h := NewExtractHandler(fc).Schema

	both := `{"input":"x","extract_prompt":"get total","json_schema":{"type":"object"}}`
	assert.Equal(t, http.StatusBadRequest, post(h, both).Code)
	assert.Equal(t, http.StatusBadRequest, post(h, `{"input":"x"}`).Code)
	assert.Zero(t, fc.calls)

	rec := post(h, `{"input":"x","json_schema":{"type":"object","properties":{"total":{"type":"number"}}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.IsType(t, completion.JSONSchema{}, fc.schema.Constraint)

	rec = post(h, `{"input":"x","extract_prompt":"get total"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, completion.ExtractPrompt("get total"), fc.schema.Constraint)
}

func TestUsageEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	NewExtractHandler(&fakeCompleter{}).Usage(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var u usageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, 40, u.TotalTokens)
	assert.Equal(t, "gpt-4o", u.Model)
}

type fakeAnswerer struct {
	calls int
	got   reader.ReadRequest
	err   error
}

func (f *fakeAnswerer) Read(_ context.Context, req reader.ReadRequest) (*models.AnswerResult, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.AnswerResult{
		Answer:  "100 EUR",
		Sources: []models.SourceRef{{Filename: req.Filename, PageNum: 2}},
	}, nil
}

type fakeJobs struct {
	payload queue.DocumentQueryPayload
}

func (f *fakeJobs) EnqueueDocumentQuery(_ context.Context, p queue.DocumentQueryPayload) (string, error) {
	f.payload = p
	return "job-1", nil
}

func (f *fakeJobs) JobStatus(_ context.Context, id string) (*queue.JobStatus, error) {
	if id != "job-1" {
		return nil, queue.ErrJobNotFound
	}
	return &queue.JobStatus{ID: id, State: "completed", Result: json.RawMessage(`{"answer":"100 EUR"}`)}, nil
}

type mapCache map[string][]byte

func (m mapCache) Get(_ context.Context, key string, dest any) error {
	b, ok := m[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	m[key] = b
	return err
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/query", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentQuerySync(t *testing.T) {
	fa := &fakeAnswerer{}
	h := NewDocumentHandler(fa, nil, nil, 0)

	rec := httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "total?"}, "bill.pdf", []byte("%PDF")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"100 EUR","sources":[{"filename":"bill.pdf","page_num":2}]}`, rec.Body.String())
	assert.Equal(t, "total?", fa.got.Question)
}

func TestDocumentQueryValidation(t *testing.T) {
	fa := &fakeAnswerer{}
	h := NewDocumentHandler(fa, nil, nil, 0)

	rec := httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "total?"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "  "}, "bill.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "q", "async": "true"}, "bill.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "async without a queue")

	assert.Zero(t, fa.calls)
}

func TestDocumentQueryExtractionFailure(t *testing.T) {
	h := NewDocumentHandler(&fakeAnswerer{err: apperr.ExtractionFailure(nil, "no text")}, nil, nil, 0)
	rec := httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "q"}, "scan.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDocumentQueryUploadLimit(t *testing.T) {
	fa := &fakeAnswerer{}
	h := NewDocumentHandler(fa, nil, nil, 1024)
	rec := httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "q"}, "big.pdf", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fa.calls)
}

func TestDocumentQueryUsesCache(t *testing.T) {
	fa := &fakeAnswerer{}
	h := NewDocumentHandler(fa, nil, mapCache{}, 0)

	for _, name := range []string{"first.pdf", "second.pdf"} {
		rec := httptest.NewRecorder()
		h.Query(rec, multipartRequest(t, map[string]string{"question": "Total?"}, name, []byte("%PDF same")))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), name)
	}
	assert.Equal(t, 1, fa.calls)
}

func TestDocumentQueryAsyncAndJobStatus(t *testing.T) {
	jobs := &fakeJobs{}
	fa := &fakeAnswerer{}
	h := NewDocumentHandler(fa, jobs, nil, 0)

	rec := httptest.NewRecorder()
	h.Query(rec, multipartRequest(t, map[string]string{"question": "q", "async": "true"}, "bill.pdf", []byte("%PDF")))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":"job-1","status_url":"/v1/jobs/job-1"}`, rec.Body.String())
	assert.Equal(t, []byte("%PDF"), jobs.payload.Data)
	assert.Zero(t, fa.calls)

	r := chi.NewRouter()
	r.Get("/v1/jobs/{id}", h.Job)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"completed"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadyz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"redis": pinger{}, "database": nil}).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database")

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"redis": pinger{err: errors.New("down")}}).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: down")
}
