package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"foerderscout/internal/model"
)

func jobBody(t *testing.T, jobType model.JobType, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(model.Job{Type: jobType, Payload: raw, EnqueuedAt: time.Now()})
	require.NoError(t, err)
	return body
}

func TestJobWorker_DispatchRoutesByType(t *testing.T) {
	w := NewJobWorker(nil, "jobs", zaptest.NewLogger(t))

	var generated model.GenerateApplicationPayload
	w.Handle(model.JobGenerateApplication, Decode(func(ctx context.Context, p model.GenerateApplicationPayload) error {
		generated = p
		return nil
	}))
	var exported int
	w.Handle(model.JobExportDocument, Decode(func(ctx context.Context, p model.ExportDocumentPayload) error {
		exported++
		return nil
	}))

	id := uuid.New()
	err := w.Dispatch(context.Background(), jobBody(t, model.JobGenerateApplication, model.GenerateApplicationPayload{
		ApplicationID:  id,
		SectionKey:     "work_plan",
		PreviousStatus: model.StatusInProgress,
	}))
	require.NoError(t, err)
	assert.Equal(t, id, generated.ApplicationID)
	assert.Equal(t, "work_plan", generated.SectionKey)
	assert.Equal(t, model.StatusInProgress, generated.PreviousStatus)
	assert.Zero(t, exported)
}

func TestJobWorker_DispatchErrors(t *testing.T) {
	w := NewJobWorker(nil, "jobs", zaptest.NewLogger(t))
	boom := errors.New("boom")
	w.Handle(model.JobCleanupExpired, func(ctx context.Context, payload json.RawMessage) error { return boom })
	w.Handle(model.JobEmbedGrants, Decode(func(ctx context.Context, p model.EmbedGrantsPayload) error { return nil }))

	assert.Error(t, w.Dispatch(context.Background(), []byte("not json")))

	err := w.Dispatch(context.Background(), jobBody(t, "resize_images", struct{}{}))
	assert.ErrorIs(t, err, ErrUnknownJob)

	err = w.Dispatch(context.Background(), jobBody(t, model.JobCleanupExpired, struct{}{}))
	assert.ErrorIs(t, err, boom)

	err = w.Dispatch(context.Background(), jobBody(t, model.JobEmbedGrants, map[string]any{"grant_ids": "not-a-list"}))
	assert.Error(t, err)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []model.JobType
}

func (q *recordingQueue) Enqueue(ctx context.Context, jobType model.JobType, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobType)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func TestScheduler_EnqueuesOnInterval(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(q, model.JobCleanupExpired, 10*time.Millisecond, zaptest.NewLogger(t))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return q.count() >= 2 }, time.Second, 5*time.Millisecond)
	s.Close()

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, jt := range q.jobs {
		assert.Equal(t, model.JobCleanupExpired, jt)
	}
}
