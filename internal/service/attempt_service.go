package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/response"
)

// AttemptService reads recorded attempts.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attemptRepo *repository.AttemptRepository) *AttemptService {
	return &AttemptService{attemptRepo: attemptRepo}
}

// History returns a page of the learner's recorded attempts, newest first.
func (s *AttemptService) History(ctx context.Context, learnerID, page, perPage int) ([]model.AttemptSummary, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	items, total, err := s.attemptRepo.ListByLearnerPaginated(ctx, learnerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return items, response.NewPagination(page, perPage, total), nil
}

// ListForExam returns a page of all recorded attempts of an exam.
func (s *AttemptService) ListForExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.AttemptSummary, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	items, total, err := s.attemptRepo.ListByExamPaginated(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return items, response.NewPagination(page, perPage, total), nil
}

// GetRecorded returns one recorded attempt. Learners only see their own;
// pass learnerID 0 for admin access.
func (s *AttemptService) GetRecorded(ctx context.Context, learnerID int, id uuid.UUID) (*model.Attempt, error) {
	a, err := s.attemptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if learnerID != 0 && a.LearnerID != learnerID {
		return nil, ErrAttemptNotOwned
	}
	return a, nil
}
