package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docreader/internal/apperr"
	"github.com/nikhilbhutani/docreader/internal/document"
	"github.com/nikhilbhutani/docreader/internal/models"
	"github.com/nikhilbhutani/docreader/internal/queue"
	"github.com/nikhilbhutani/docreader/internal/reader"
)

type Answerer interface {
	Read(ctx context.Context, req reader.ReadRequest) (*models.AnswerResult, error)
}

// DocumentWorker answers queued document questions and stores the
// AnswerResult as the task result.
type DocumentWorker struct {
	reader Answerer
}

func NewDocumentWorker(r Answerer) *DocumentWorker {
	return &DocumentWorker{reader: r}
}

func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentQueryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	slog.Info("answering document question", "filename", payload.Filename, "bytes", len(payload.Data))

	res, err := w.reader.Read(ctx, reader.ReadRequest{
		Filename: payload.Filename,
		Source:   document.Bytes(payload.Data),
		Question: payload.Question,
	})
	if err != nil {
		// Retrying cannot change the outcome for a bad request or an
		// unreadable document.
		if errors.Is(err, apperr.ErrInvalidRequest) || errors.Is(err, apperr.ErrExtractionFailure) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("read document: %w", err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(data); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return nil
}
