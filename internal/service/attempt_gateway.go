package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
)

// AttemptGateway is the production exam.Gateway: definitions come through
// the exam cache and attempts go to PostgreSQL.
type AttemptGateway struct {
	exams    *ExamService
	attempts *repository.AttemptRepository
}

var _ exam.Gateway = (*AttemptGateway)(nil)

// NewAttemptGateway creates a new AttemptGateway.
func NewAttemptGateway(exams *ExamService, attempts *repository.AttemptRepository) *AttemptGateway {
	return &AttemptGateway{exams: exams, attempts: attempts}
}

func (g *AttemptGateway) LoadExamDefinition(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	return g.exams.LoadDefinition(ctx, examID)
}

func (g *AttemptGateway) RecordAttempt(ctx context.Context, a *model.Attempt) error {
	return g.attempts.Record(ctx, a)
}

// AttemptQueue pushes attempts that could not be recorded onto the Redis
// retry queue drained by the attempt worker.
type AttemptQueue struct {
	rdb *redis.Client
}

// NewAttemptQueue creates a new AttemptQueue.
func NewAttemptQueue(rdb *redis.Client) *AttemptQueue {
	return &AttemptQueue{rdb: rdb}
}

// Enqueue appends an attempt to the retry queue.
func (q *AttemptQueue) Enqueue(ctx context.Context, a *model.Attempt) error {
	payload, err := json.Marshal(model.QueuedAttempt{Attempt: *a})
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue attempt: %w", err)
	}
	return nil
}
