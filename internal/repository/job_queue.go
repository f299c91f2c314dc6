package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"pathways-backend/internal/models"
)

// JobQueue is the Redis list the worker pool consumes.
type JobQueue struct {
	redis *redis.Client
}

func NewJobQueue(redisClient *redis.Client) *JobQueue {
	return &JobQueue{redis: redisClient}
}

func QueueName(jobType string) string {
	return "queue:" + jobType
}

func (q *JobQueue) Push(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err()
}
