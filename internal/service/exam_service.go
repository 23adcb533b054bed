package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/response"
)

// ExamService handles exam administration and serves exam definitions
// through the Redis cache.
type ExamService struct {
	examRepo   *repository.ExamRepository
	courseRepo *repository.CourseRepository
	cache      *ExamCache
	log        zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	courseRepo *repository.CourseRepository,
	cache *ExamCache,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:   examRepo,
		courseRepo: courseRepo,
		cache:      cache,
		log:        log.With().Str("component", "exam_service").Logger(),
	}
}

// List returns a page of active exams, optionally for one course.
func (s *ExamService) List(ctx context.Context, courseID *uuid.UUID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	exams, total, err := s.examRepo.ListActivePaginated(ctx, courseID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// GetByID returns an exam with its answer key, active or not.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// Create adds an exam with its questions to an active course.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("%w: course_id", exam.ErrInvalidInput)
	}
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, fmt.Errorf("course %s is inactive: %w", courseID, exam.ErrNotFound)
	}

	e := &model.Exam{
		CourseID:        courseID,
		CourseTitle:     course.Title,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.Duration,
		Questions:       toQuestions(req.Questions),
	}
	if err := s.examRepo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, e)
	s.log.Info().Str("exam_id", e.ID.String()).Int("questions", len(e.Questions)).Msg("Exam created")
	return e, nil
}

// Update edits an active exam. A non-nil question list replaces the old one;
// recorded attempts keep their own copy of what was answered.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	e, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("exam %s is inactive: %w", id, exam.ErrNotFound)
	}

	if req.Title != "" {
		e.Title = req.Title
	}
	if req.Description != "" {
		e.Description = req.Description
	}
	if req.Duration > 0 {
		e.DurationMinutes = req.Duration
	}
	replace := req.Questions != nil
	if replace {
		e.Questions = toQuestions(req.Questions)
	}

	if err := s.examRepo.Update(ctx, e, replace); err != nil {
		return nil, err
	}
	s.invalidate(ctx, e)
	s.log.Info().Str("exam_id", id.String()).Bool("questions_replaced", replace).Msg("Exam updated")
	return e, nil
}

// Delete soft-deletes an exam.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.examRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, e)
	s.log.Info().Str("exam_id", id.String()).Msg("Exam deactivated")
	return nil
}

// LoadDefinition returns an active exam with its answer key, from Redis when
// cached and from PostgreSQL otherwise. A miss re-populates the cache.
func (s *ExamService) LoadDefinition(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	if e, ok, err := s.cache.GetDefinition(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache unavailable, using database")
	} else if ok {
		return e, nil
	}

	e, err := s.examRepo.GetActiveDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetDefinition(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache exam definition")
	}
	return e, nil
}

// ForCourse returns the learner view of a course's current exam.
func (s *ExamService) ForCourse(ctx context.Context, courseID uuid.UUID) (*model.ExamForLearner, error) {
	if id, ok, err := s.cache.CourseExamID(ctx, courseID); err == nil && ok {
		if e, err := s.LoadDefinition(ctx, id); err == nil {
			view := e.ForLearner()
			return &view, nil
		}
	}

	e, err := s.examRepo.LatestActiveByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetCourseExam(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("course_id", courseID.String()).Msg("Failed to cache course exam")
	}
	view := e.ForLearner()
	return &view, nil
}

// PrewarmAllCaches loads every active exam into Redis on startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No active exams to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		e, err := s.examRepo.GetActiveDefinition(ctx, id)
		if err == nil {
			err = s.cache.SetDefinition(ctx, e)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(ids)).Msg("Prewarming complete")
	return nil
}

func (s *ExamService) invalidate(ctx context.Context, e *model.Exam) {
	if err := s.cache.Invalidate(ctx, e.ID, e.CourseID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Failed to invalidate exam cache")
	}
}

func toQuestions(in []model.QuestionInput) []model.Question {
	qs := make([]model.Question, len(in))
	for i, q := range in {
		qs[i] = q.ToQuestion()
	}
	return qs
}
