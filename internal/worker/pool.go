package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pathways-backend/internal/metrics"
	"pathways-backend/internal/models"
	"pathways-backend/internal/pathway"
	"pathways-backend/internal/repository"
	"pathways-backend/internal/services"
)

const popTimeout = 5 * time.Second

type ApplyRunner interface {
	RunApplyJob(ctx context.Context, job *models.Job, progress func(step int, name string)) (*models.ApplyResult, error)
}

type JobRecorder interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Complete(ctx context.Context, id uuid.UUID, result any) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Pool runs queued pathway-apply jobs. A failed job is recorded and
// reported, never requeued: every attempt is a paid upstream call.
type Pool struct {
	redis       *redis.Client
	runner      ApplyRunner
	jobRepo     JobRecorder
	locks       pathway.SingleFlight
	notifier    services.Notifier
	workerCount int
	log         zerolog.Logger
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	runner ApplyRunner,
	jobRepo JobRecorder,
	locks pathway.SingleFlight,
	notifier services.Notifier,
	workerCount int,
	log zerolog.Logger,
) *Pool {
	if locks == nil {
		locks = pathway.NewMemoryFlight()
	}
	if notifier == nil {
		notifier = services.NopNotifier{}
	}
	return &Pool{
		redis:       redisClient,
		runner:      runner,
		jobRepo:     jobRepo,
		locks:       locks,
		notifier:    notifier,
		workerCount: workerCount,
		log:         log.With().Str("component", "worker").Logger(),
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{repository.QueueName(models.JobTypePathwayApply)}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, queues)
	}

	p.log.Info().Int("workers", p.workerCount).Strs("queues", queues).Msg("worker pool started")
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	select {
	case <-p.stopChan:
	default:
		close(p.stopChan)
	}
	p.wg.Wait()
}

func (p *Pool) worker(id int, queues []string) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for {
		select {
		case <-p.stopChan:
			log.Debug().Msg("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, popTimeout, queues...).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Msg("queue pop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error().Err(err).Msg("failed to parse job")
			continue
		}

		p.Process(ctx, &job)
	}
}

// Process runs one job end to end: claim, execute, record, notify.
func (p *Pool) Process(ctx context.Context, job *models.Job) {
	log := p.log.With().Str("job_id", job.ID.String()).Str("type", job.Type).Logger()

	lockKey := "job:" + job.ID.String()
	if !p.locks.TryAcquire(ctx, lockKey) {
		log.Debug().Msg("job already claimed")
		return
	}
	defer p.locks.Release(ctx, lockKey)

	log.Info().Msg("processing job")
	if err := p.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusProcessing); err != nil {
		log.Warn().Err(err).Msg("failed to mark job processing")
	}
	p.progress(ctx, job, 1, "Starting")

	var (
		result *models.ApplyResult
		err    error
	)
	switch job.Type {
	case models.JobTypePathwayApply:
		result, err = p.runner.RunApplyJob(ctx, job, func(step int, name string) {
			p.progress(ctx, job, step, name)
		})
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, result)
}

func (p *Pool) progress(ctx context.Context, job *models.Job, step int, name string) {
	p.notifier.Publish(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Step:     step,
			StepName: name,
		},
	})
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, result *models.ApplyResult) {
	metrics.JobsProcessed.WithLabelValues(job.Type, models.JobStatusCompleted).Inc()
	if err := p.jobRepo.Complete(ctx, job.ID, result); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to store job result")
	}

	p.notifier.Publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			TripID:     job.TripID,
			BlockCount: len(result.Blocks),
		},
	})
	p.log.Info().Str("job_id", job.ID.String()).Int("blocks", len(result.Blocks)).Msg("job completed")
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	metrics.JobsProcessed.WithLabelValues(job.Type, models.JobStatusFailed).Inc()
	errMsg := err.Error()
	p.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("job failed")

	if recErr := p.jobRepo.Fail(ctx, job.ID, errMsg); recErr != nil {
		p.log.Error().Err(recErr).Str("job_id", job.ID.String()).Msg("failed to record job failure")
	}

	p.notifier.Publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    errorCode(err),
			ErrorMessage: errMsg,
		},
	})
}

func errorCode(err error) string {
	var (
		fverr  *pathway.FinalizeValidationError
		finErr *pathway.FinalizeSchemaError
		upErr  *pathway.UpstreamError
		empty  *pathway.MaterializationEmptyError
		pverr  *pathway.PlanValidationError
		nfErr  *services.NotFoundError
	)
	switch {
	case errors.Is(err, pathway.ErrBusy):
		return "GENERATION_IN_PROGRESS"
	case errors.As(err, &fverr):
		return "FINALIZE_VALIDATION_ERROR"
	case errors.As(err, &finErr):
		return "FINALIZE_SCHEMA_ERROR"
	case errors.As(err, &upErr):
		return "UPSTREAM_ERROR"
	case errors.As(err, &empty):
		return "MATERIALIZATION_EMPTY"
	case errors.As(err, &pverr):
		return "VALIDATION_ERROR"
	case errors.As(err, &nfErr):
		return "NOT_FOUND"
	default:
		return "JOB_FAILED"
	}
}
