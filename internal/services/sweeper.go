package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pathways-backend/internal/models"
)

const (
	defaultStaleJobAfter = 30 * time.Minute
	sweepPollInterval    = 5 * time.Minute
	staleJobMessage      = "The job did not finish in time. Please try again."
)

type StaleJobStore interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]models.Job, error)
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

// JobSweeper fails pathway-apply jobs that were never picked up or whose
// worker died mid-run, and tells the owner over the websocket.
type JobSweeper struct {
	jobs     StaleJobStore
	notifier Notifier
	staleAt  time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
}

func NewJobSweeper(jobs StaleJobStore, notifier Notifier, staleAfter time.Duration, log zerolog.Logger) *JobSweeper {
	if staleAfter <= 0 {
		staleAfter = defaultStaleJobAfter
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &JobSweeper{
		jobs:     jobs,
		notifier: notifier,
		staleAt:  staleAfter,
		log:      log.With().Str("component", "job_sweeper").Logger(),
		stopChan: make(chan struct{}),
	}
}

func (s *JobSweeper) Start() {
	if s.jobs == nil {
		return
	}
	go s.loop()
	s.log.Info().Dur("stale_after", s.staleAt).Msg("job sweeper started")
}

func (s *JobSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *JobSweeper) loop() {
	// Run on startup as well as by interval.
	s.Sweep(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(sweepPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(context.Background(), time.Now().UTC())
		}
	}
}

// Sweep fails every job that is stale at now and returns how many it failed.
func (s *JobSweeper) Sweep(ctx context.Context, now time.Time) int {
	stale, err := s.jobs.ListStale(ctx, now.Add(-s.staleAt))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list stale jobs")
		return 0
	}

	failed := 0
	for _, job := range stale {
		if !isStale(job, now, s.staleAt) {
			continue
		}
		if err := s.jobs.Fail(ctx, job.ID, staleJobMessage); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to mark stale job failed")
			continue
		}
		failed++
		s.notifier.Publish(ctx, job.UserID, models.WSMessage{
			Type: "error",
			Payload: models.ErrorEvent{
				JobID:        job.ID,
				ErrorCode:    "JOB_TIMEOUT",
				ErrorMessage: staleJobMessage,
			},
		})
	}
	if failed > 0 {
		s.log.Warn().Int("count", failed).Msg("failed stale jobs")
	}
	return failed
}

func isStale(job models.Job, now time.Time, after time.Duration) bool {
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusProcessing {
		return false
	}
	return now.Sub(job.CreatedAt) >= after
}
