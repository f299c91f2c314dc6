package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pathways-backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobStatusPending

	configBytes := []byte(j.ConfigJSON)
	if len(configBytes) == 0 {
		configBytes = []byte("{}")
	}

	query := `INSERT INTO jobs (id, user_id, type, trip_id, config_json, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		j.ID, j.UserID, j.Type, j.TripID, configBytes, j.Status,
	).Scan(&j.CreatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	query := `SELECT id, user_id, type, trip_id, config_json, result_json, status, error_message, created_at, completed_at
		FROM jobs WHERE id = $1`

	var config, result []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.UserID, &j.Type, &j.TripID, &config, &result, &j.Status,
		&j.ErrorMessage, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	j.ConfigJSON = config
	j.ResultJSON = result
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := "UPDATE jobs SET status = $1 WHERE id = $2"
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query = "UPDATE jobs SET status = $1, completed_at = $2 WHERE id = $3"
		_, err := r.pool.Exec(ctx, query, status, time.Now(), id)
		return err
	}
	_, err := r.pool.Exec(ctx, query, status, id)
	return err
}

// Complete stores the job result and marks it completed.
func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		"UPDATE jobs SET status = $1, result_json = $2, completed_at = $3 WHERE id = $4",
		models.JobStatusCompleted, data, time.Now(), id,
	)
	return err
}

// Fail records the error and marks the job failed. Failed jobs are not
// requeued.
func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4",
		models.JobStatusFailed, errMsg, time.Now(), id,
	)
	return err
}

// ListStale returns unfinished jobs created before cutoff.
func (r *JobRepo) ListStale(ctx context.Context, cutoff time.Time) ([]models.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, trip_id, status, created_at FROM jobs
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at`,
		models.JobStatusPending, models.JobStatusProcessing, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.Type, &j.TripID, &j.Status, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
