package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromInfo(t *testing.T) {
	done := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	st := statusFromInfo(&asynq.TaskInfo{
		ID:          "job-1",
		State:       asynq.TaskStateCompleted,
		MaxRetry:    3,
		CompletedAt: done,
		Result:      []byte(`{"answer":"100 EUR","sources":[]}`),
	})
	assert.Equal(t, "job-1", st.ID)
	assert.Equal(t, "completed", st.State)
	require.NotNil(t, st.CompletedAt)
	assert.Equal(t, done, *st.CompletedAt)
	assert.JSONEq(t, `{"answer":"100 EUR","sources":[]}`, string(st.Result))
}

func TestStatusFromInfoPending(t *testing.T) {
	st := statusFromInfo(&asynq.TaskInfo{
		ID:       "job-2",
		State:    asynq.TaskStateRetry,
		Retried:  1,
		MaxRetry: 3,
		LastErr:  "query index: transient failure",
		Result:   []byte("not json"),
	})
	assert.Equal(t, "retry", st.State)
	assert.Equal(t, 1, st.Retried)
	assert.Nil(t, st.CompletedAt)
	assert.Nil(t, st.Result)
	assert.Equal(t, "query index: transient failure", st.LastError)
}
