package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docreader/internal/config"
)

// ErrJobNotFound is returned by JobStatus for unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

const (
	defaultQueue = "default"
	// Completed jobs stay inspectable for this long.
	resultRetention = 24 * time.Hour
)

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	opt := RedisOpt(cfg)
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}
}

func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// EnqueueDocumentQuery returns the job ID under which the answer will be
// available.
func (c *Client) EnqueueDocumentQuery(ctx context.Context, payload DocumentQueryPayload) (string, error) {
	return c.enqueue(ctx, TypeDocumentQuery, payload,
		asynq.Queue(defaultQueue),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(resultRetention),
	)
}

func (c *Client) JobStatus(_ context.Context, id string) (*JobStatus, error) {
	info, err := c.inspector.GetTaskInfo(defaultQueue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("inspect job %s: %w", id, err)
	}
	return statusFromInfo(info), nil
}

func statusFromInfo(info *asynq.TaskInfo) *JobStatus {
	st := &JobStatus{
		ID:        info.ID,
		State:     info.State.String(),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if !info.CompletedAt.IsZero() {
		completed := info.CompletedAt
		st.CompletedAt = &completed
	}
	if len(info.Result) > 0 && json.Valid(info.Result) {
		st.Result = json.RawMessage(info.Result)
	}
	return st
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return info.ID, nil
}
