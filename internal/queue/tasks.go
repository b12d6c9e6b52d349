package queue

import (
	"encoding/json"
	"time"
)

const TypeDocumentQuery = "document:query"

// DocumentQueryPayload carries the PDF itself so a worker needs no shared
// storage with the API process.
type DocumentQueryPayload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
	Question string `json:"question"`
}

// JobStatus is the externally visible view of an enqueued job.
type JobStatus struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	Retried     int             `json:"retried"`
	MaxRetry    int             `json:"max_retry"`
	LastError   string          `json:"last_error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}
