package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pathways-backend/internal/models"
)

const DraftSessionTTL = 24 * time.Hour

// ErrSessionNotFound means no draft round exists for the trip.
var ErrSessionNotFound = errors.New("draft session not found")

// DraftSessionRepo keeps draft rounds in Redis, one key per user and trip.
type DraftSessionRepo struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewDraftSessionRepo(redisClient *redis.Client, ttl time.Duration) *DraftSessionRepo {
	if ttl <= 0 {
		ttl = DraftSessionTTL
	}
	return &DraftSessionRepo{redis: redisClient, ttl: ttl}
}

func draftSessionKey(userID uuid.UUID, tripID string) string {
	return fmt.Sprintf("draft_session:%s:%s", userID, tripID)
}

func (r *DraftSessionRepo) Get(ctx context.Context, userID uuid.UUID, tripID string) (*models.DraftSession, error) {
	data, err := r.redis.Get(ctx, draftSessionKey(userID, tripID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s models.DraftSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode draft session: %w", err)
	}
	return &s, nil
}

func (r *DraftSessionRepo) Save(ctx context.Context, userID uuid.UUID, s *models.DraftSession) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, draftSessionKey(userID, s.TripID), data, r.ttl).Err()
}
