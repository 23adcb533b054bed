package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
)

// ExamCache keeps full exam definitions (answer key included) in Redis so
// that starting an attempt does not hit PostgreSQL. Entries expire after ttl.
type ExamCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewExamCache creates a new ExamCache.
func NewExamCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ExamCache {
	return &ExamCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "exam_cache").Logger(),
	}
}

// GetDefinition returns a cached definition. A corrupt entry is deleted and
// reported as a miss so the caller reloads it.
func (c *ExamCache) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.Exam, bool, error) {
	key := config.CacheKey.ExamDefinitionKey(examID.String())
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get definition: %w", err)
	}

	var e model.Exam
	if err := json.Unmarshal(data, &e); err != nil || len(e.Questions) == 0 {
		c.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Dropping corrupt cached definition")
		c.rdb.Del(ctx, key)
		return nil, false, nil
	}
	return &e, true, nil
}

// SetDefinition caches a definition.
func (c *ExamCache) SetDefinition(ctx context.Context, e *model.Exam) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamDefinitionKey(e.ID.String()), data, c.ttl).Err()
}

// CourseExamID returns the cached id of a course's current exam.
func (c *ExamCache) CourseExamID(ctx context.Context, courseID uuid.UUID) (uuid.UUID, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.CourseExamKey(courseID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("get course exam: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// SetCourseExam caches a definition and points its course at it.
func (c *ExamCache) SetCourseExam(ctx context.Context, e *model.Exam) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ExamDefinitionKey(e.ID.String()), data, c.ttl)
	pipe.Set(ctx, config.CacheKey.CourseExamKey(e.CourseID.String()), e.ID.String(), c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops an exam and its course pointer.
func (c *ExamCache) Invalidate(ctx context.Context, examID, courseID uuid.UUID) error {
	return c.rdb.Del(ctx,
		config.CacheKey.ExamDefinitionKey(examID.String()),
		config.CacheKey.CourseExamKey(courseID.String()),
	).Err()
}
