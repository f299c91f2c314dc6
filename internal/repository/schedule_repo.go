package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pathways-backend/internal/models"
)

type ScheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const scheduleColumns = `id, trip_id, user_id, block_date::text, start_time, duration_minutes, title,
	description, location, notes, is_generated, driving_question, field_experience, inquiry_task,
	artifact, reflection_prompt, critique_step, local_options, image_url, image_alt, image_mode, created_at`

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listBlocks(ctx context.Context, q rowQuerier, userID uuid.UUID, tripID string) ([]models.ScheduleBlock, error) {
	rows, err := q.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedule_blocks
		 WHERE user_id = $1 AND trip_id = $2
		 ORDER BY block_date, start_time, created_at`,
		userID, tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []models.ScheduleBlock
	for rows.Next() {
		var b models.ScheduleBlock
		var localOptions []byte
		if err := rows.Scan(
			&b.ID, &b.TripID, &b.UserID, &b.Date, &b.StartTime, &b.Duration, &b.Title,
			&b.Description, &b.Location, &b.Notes, &b.IsGenerated, &b.DrivingQuestion,
			&b.FieldExperience, &b.InquiryTask, &b.Artifact, &b.ReflectionPrompt, &b.CritiqueStep,
			&localOptions, &b.ImageURL, &b.ImageAlt, &b.ImageMode, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(localOptions) > 0 {
			if err := json.Unmarshal(localOptions, &b.LocalOptions); err != nil {
				return nil, fmt.Errorf("decode local options of block %s: %w", b.ID, err)
			}
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *ScheduleRepo) ListByTrip(ctx context.Context, userID uuid.UUID, tripID string) ([]models.ScheduleBlock, error) {
	return listBlocks(ctx, r.pool, userID, tripID)
}

const insertBlockSQL = `INSERT INTO schedule_blocks (
		id, trip_id, user_id, block_date, start_time, duration_minutes, title, description, location,
		notes, is_generated, driving_question, field_experience, inquiry_task, artifact,
		reflection_prompt, critique_step, local_options, image_url, image_alt, image_mode, created_at)
	VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

func insertArgs(b *models.ScheduleBlock) ([]any, error) {
	opts := b.LocalOptions
	if opts == nil {
		opts = []models.VenueSuggestion{}
	}
	localOptions, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}
	return []any{
		b.ID, b.TripID, b.UserID, b.Date, b.StartTime, b.Duration, b.Title, b.Description, b.Location,
		b.Notes, b.IsGenerated, b.DrivingQuestion, b.FieldExperience, b.InquiryTask, b.Artifact,
		b.ReflectionPrompt, b.CritiqueStep, localOptions, b.ImageURL, b.ImageAlt, b.ImageMode, b.CreatedAt,
	}, nil
}

// Create inserts a manual block.
func (r *ScheduleRepo) Create(ctx context.Context, b *models.ScheduleBlock) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	args, err := insertArgs(b)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertBlockSQL, args...)
	return err
}

// Delete removes one block. pgx.ErrNoRows means no such block.
func (r *ScheduleRepo) Delete(ctx context.Context, userID uuid.UUID, tripID, blockID string) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM schedule_blocks WHERE user_id = $1 AND trip_id = $2 AND id = $3",
		userID, tripID, blockID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MergeFunc computes a trip's new block list from its current blocks.
type MergeFunc func(existing []models.ScheduleBlock) ([]models.ScheduleBlock, error)

// ReplaceGenerated runs merge against the trip's current blocks and writes
// the result back in one transaction. The transaction holds an advisory
// lock on the trip, so concurrent materializations of the same trip run one
// after the other. Only generated blocks are written; manual blocks are
// never touched.
func (r *ScheduleRepo) ReplaceGenerated(ctx context.Context, userID uuid.UUID, tripID string, merge MergeFunc) ([]models.ScheduleBlock, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin schedule transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", userID.String()+":"+tripID); err != nil {
		return nil, fmt.Errorf("lock trip schedule: %w", err)
	}

	existing, err := listBlocks(ctx, tx, userID, tripID)
	if err != nil {
		return nil, fmt.Errorf("read trip schedule: %w", err)
	}

	merged, err := merge(existing)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM schedule_blocks WHERE user_id = $1 AND trip_id = $2 AND is_generated",
		userID, tripID,
	); err != nil {
		return nil, fmt.Errorf("clear generated blocks: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range merged {
		b := &merged[i]
		if !b.IsGenerated {
			continue
		}
		b.UserID = userID
		b.TripID = tripID
		args, err := insertArgs(b)
		if err != nil {
			return nil, err
		}
		batch.Queue(insertBlockSQL, args...)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("insert generated blocks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit schedule: %w", err)
	}
	return merged, nil
}
