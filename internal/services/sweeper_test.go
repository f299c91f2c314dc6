package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathways-backend/internal/models"
)

type staleStore struct {
	jobs    []models.Job
	listErr error
	failErr map[uuid.UUID]error
	failed  []uuid.UUID
	cutoff  time.Time
}

func (s *staleStore) ListStale(_ context.Context, cutoff time.Time) ([]models.Job, error) {
	s.cutoff = cutoff
	return s.jobs, s.listErr
}

func (s *staleStore) Fail(_ context.Context, id uuid.UUID, _ string) error {
	if err := s.failErr[id]; err != nil {
		return err
	}
	s.failed = append(s.failed, id)
	return nil
}

type publishRecorder struct {
	messages []models.WSMessage
}

func (p *publishRecorder) Notify(context.Context, uuid.UUID, string, string) {}

func (p *publishRecorder) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) {
	p.messages = append(p.messages, msg)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status string
		age    time.Duration
		want   bool
	}{
		{"old pending", models.JobStatusPending, time.Hour, true},
		{"old processing", models.JobStatusProcessing, 30 * time.Minute, true},
		{"recent processing", models.JobStatusProcessing, 10 * time.Minute, false},
		{"old completed", models.JobStatusCompleted, 2 * time.Hour, false},
		{"old failed", models.JobStatusFailed, 2 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := models.Job{Status: tt.status, CreatedAt: now.Add(-tt.age)}
			assert.Equal(t, tt.want, isStale(job, now, 30*time.Minute))
		})
	}
}

func TestJobSweeper_Sweep(t *testing.T) {
	now := time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)
	ok := models.Job{ID: uuid.New(), UserID: uuid.New(), Status: models.JobStatusProcessing, CreatedAt: now.Add(-time.Hour)}
	broken := models.Job{ID: uuid.New(), UserID: uuid.New(), Status: models.JobStatusPending, CreatedAt: now.Add(-time.Hour)}
	done := models.Job{ID: uuid.New(), Status: models.JobStatusCompleted, CreatedAt: now.Add(-time.Hour)}

	store := &staleStore{
		jobs:    []models.Job{ok, broken, done},
		failErr: map[uuid.UUID]error{broken.ID: errors.New("db down")},
	}
	notifier := &publishRecorder{}
	sweeper := NewJobSweeper(store, notifier, 0, zerolog.Nop())

	assert.Equal(t, 1, sweeper.Sweep(context.Background(), now))
	assert.Equal(t, now.Add(-defaultStaleJobAfter), store.cutoff)
	assert.Equal(t, []uuid.UUID{ok.ID}, store.failed)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "error", notifier.messages[0].Type)
	ev, isEvent := notifier.messages[0].Payload.(models.ErrorEvent)
	require.True(t, isEvent)
	assert.Equal(t, ok.ID, ev.JobID)
}

func TestJobSweeper_ListError(t *testing.T) {
	store := &staleStore{listErr: errors.New("db down")}
	sweeper := NewJobSweeper(store, nil, time.Minute, zerolog.Nop())
	assert.Zero(t, sweeper.Sweep(context.Background(), time.Now()))
}

func TestJobSweeper_StopIsIdempotent(t *testing.T) {
	sweeper := NewJobSweeper(nil, nil, time.Minute, zerolog.Nop())
	sweeper.Start()
	sweeper.Stop()
	sweeper.Stop()
}
