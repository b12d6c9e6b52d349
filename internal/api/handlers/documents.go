package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/cache"
	"github.com/nikhilbhutani/docreader/internal/document"
	"github.com/nikhilbhutani/docreader/internal/models"
	"github.com/nikhilbhutani/docreader/internal/queue"
	"github.com/nikhilbhutani/docreader/internal/reader"
)

type Answerer interface {
	Read(ctx context.Context, req reader.ReadRequest) (*models.AnswerResult, error)
}

type JobQueue interface {
	EnqueueDocumentQuery(ctx context.Context, payload queue.DocumentQueryPayload) (string, error)
	JobStatus(ctx context.Context, id string) (*queue.JobStatus, error)
}

type AnswerCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type DocumentHandler struct {
	reader    Answerer
	jobs      JobQueue    // nil disables async=true
	cache     AnswerCache // nil disables answer caching
	maxUpload int64
	cacheTTL  time.Duration
}

func NewDocumentHandler(r Answerer, jobs JobQueue, c AnswerCache, maxUpload int64) *DocumentHandler {
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &DocumentHandler{reader: r, jobs: jobs, cache: c, maxUpload: maxUpload, cacheTTL: time.Hour}
}

type jobAccepted struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// Query answers a question about an uploaded PDF. The form carries the
// document as "file" and the question as "question"; async=true queues the
// work and returns a job ID instead.
func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, r, apperr.InvalidRequest("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.InvalidRequest("file required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	question := r.FormValue("question")
	if strings.TrimSpace(question) == "" {
		writeError(w, r, apperr.InvalidRequest("question required"))
		return
	}

	async, _ := strconv.ParseBool(r.FormValue("async"))
	if async {
		h.enqueue(w, r, queue.DocumentQueryPayload{Filename: header.Filename, Data: data, Question: question})
		return
	}

	key := cache.AnswerKey(data, question)
	if h.cache != nil {
		var cached models.AnswerResult
		err := h.cache.Get(r.Context(), key, &cached)
		switch {
		case err == nil:
			// Cached sources carry the filename of the first upload.
			for i := range cached.Sources {
				cached.Sources[i].Filename = header.Filename
			}
			writeJSON(w, http.StatusOK, cached)
			return
		case !errors.Is(err, cache.ErrMiss):
			slog.Warn("answer cache lookup failed", "error", err)
		}
	}

	res, err := h.reader.Read(r.Context(), reader.ReadRequest{
		Filename: header.Filename,
		Source:   document.Bytes(data),
		Question: question,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), key, res, h.cacheTTL); err != nil {
			slog.Warn("answer cache store failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) enqueue(w http.ResponseWriter, r *http.Request, payload queue.DocumentQueryPayload) {
	if h.jobs == nil {
		writeError(w, r, apperr.InvalidRequest("async queries are not enabled on this server"))
		return
	}
	id, err := h.jobs.EnqueueDocumentQuery(r.Context(), payload)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: id, StatusURL: "/v1/jobs/" + id})
}

func (h *DocumentHandler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "jobs are not enabled on this server"})
		return
	}
	id := chi.URLParam(r, "id")
	st, err := h.jobs.JobStatus(r.Context(), id)
	if errors.Is(err, queue.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
