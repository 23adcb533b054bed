package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

// monitorRecentLimit caps the recorded attempts shown in a monitor snapshot.
const monitorRecentLimit = 100

// LiveProgressSource lists in-memory attempts of an exam.
type LiveProgressSource interface {
	LiveProgress(examID uuid.UUID) []LiveProgress
}

// ExamAttemptLister pages through recorded attempts of an exam.
type ExamAttemptLister interface {
	ListByExamPaginated(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error)
}

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	live     LiveProgressSource
	attempts ExamAttemptLister
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(live LiveProgressSource, attempts ExamAttemptLister) *MonitorService {
	return &MonitorService{live: live, attempts: attempts}
}

// MonitorStats aggregates a snapshot.
type MonitorStats struct {
	InProgress    int `json:"total_in_progress"`
	Completed     int `json:"total_completed"`
	Passed        int `json:"total_passed"`
	AutoFinalized int `json:"total_auto_finalized"`
}

// MonitorSnapshot is the monitor's view of one exam.
type MonitorSnapshot struct {
	Live   []LiveProgress         `json:"live"`
	Recent []model.AttemptSummary `json:"recent"`
	Stats  MonitorStats           `json:"stats"`
}

// Snapshot gathers live progress and recent recorded attempts concurrently.
// Live progress is critical; the recorded list is best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		live      []LiveProgress
		recent    []model.AttemptSummary
		completed int
		recentErr error
		wg        sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		live = s.live.LiveProgress(examID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		recent, completed, recentErr = s.attempts.ListByExamPaginated(ctx, examID, monitorRecentLimit, 0)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &MonitorSnapshot{Live: live, Recent: []model.AttemptSummary{}}
	for _, p := range live {
		if p.State == exam.StateInProgress {
			snap.Stats.InProgress++
		}
	}
	if recentErr == nil {
		snap.Recent = recent
		snap.Stats.Completed = completed
		for _, a := range recent {
			if a.Passed {
				snap.Stats.Passed++
			}
			if a.AutoFinalized {
				snap.Stats.AutoFinalized++
			}
		}
	}
	return snap, nil
}
