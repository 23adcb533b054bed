package service

import (
	"context"
	"sync"

	"github.com/stemsi/elearn-backend/internal/model"
)

const dashboardListSize = 5

// DashboardSource is the persistence behind the admin dashboard.
type DashboardSource interface {
	GetSummaryCounts(ctx context.Context) (model.DashboardCounts, error)
	GetPopularCourses(ctx context.Context, limit int) ([]model.DashboardCourse, error)
	GetExamResults(ctx context.Context, limit int) ([]model.DashboardExamResult, error)
}

// LiveCounter reports attempts held in memory.
type LiveCounter interface {
	LiveCount() (inProgress, finished int)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	model.DashboardCounts
	PassRate       int                         `json:"pass_rate"`
	LiveAttempts   int                         `json:"live_attempts"`
	PopularCourses []model.DashboardCourse     `json:"popular_courses"`
	ExamResults    []model.DashboardExamResult `json:"exam_results"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo DashboardSource
	live LiveCounter
}

// NewDashboardService creates a new DashboardService. live may be nil.
func NewDashboardService(repo DashboardSource, live LiveCounter) *DashboardService {
	return &DashboardService{repo: repo, live: live}
}

// GetDashboardData runs the three dashboard queries concurrently.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	var (
		wg      sync.WaitGroup
		counts  model.DashboardCounts
		popular []model.DashboardCourse
		results []model.DashboardExamResult
		errs    [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		counts, errs[0] = s.repo.GetSummaryCounts(ctx)
	}()
	go func() {
		defer wg.Done()
		popular, errs[1] = s.repo.GetPopularCourses(ctx, dashboardListSize)
	}()
	go func() {
		defer wg.Done()
		results, errs[2] = s.repo.GetExamResults(ctx, dashboardListSize)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	data := &DashboardData{
		DashboardCounts: counts,
		PopularCourses:  popular,
		ExamResults:     results,
	}
	if counts.Attempts > 0 {
		data.PassRate = (counts.PassedAttempts*100 + counts.Attempts/2) / counts.Attempts
	}
	if s.live != nil {
		data.LiveAttempts, _ = s.live.LiveCount()
	}
	return data, nil
}
