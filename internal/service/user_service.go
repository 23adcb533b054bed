package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/response"
)

// UserService handles admin management of student accounts.
type UserService struct {
	userRepo    *repository.UserRepository
	courseRepo  *repository.CourseRepository
	attemptRepo *repository.AttemptRepository
	authService *AuthService
	log         zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	attemptRepo *repository.AttemptRepository,
	authService *AuthService,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		courseRepo:  courseRepo,
		attemptRepo: attemptRepo,
		authService: authService,
		log:         log.With().Str("component", "user_service").Logger(),
	}
}

// ListStudents returns a page of students.
func (s *UserService) ListStudents(ctx context.Context, search string, page, perPage int) ([]model.User, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	users, total, err := s.userRepo.ListByRolePaginated(ctx, model.RoleStudent, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return users, response.NewPagination(page, perPage, total), nil
}

// GetStudent returns a student with their enrollments and attempt history.
func (s *UserService) GetStudent(ctx context.Context, id int) (*model.StudentProfile, error) {
	u, err := s.getStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.courseRepo.ListEnrolled(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	results, _, err := s.attemptRepo.ListByLearnerPaginated(ctx, id, 100, 0)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	p := &model.StudentProfile{
		User:             *u,
		EnrolledCourses:  []model.CourseSummary{},
		CompletedCourses: []model.CourseSummary{},
		ExamResults:      results,
	}
	for _, ec := range enrolled {
		sum := model.CourseSummary{ID: ec.ID, Title: ec.Title, Instructor: ec.Instructor}
		p.EnrolledCourses = append(p.EnrolledCourses, sum)
		if ec.CompletedAt != nil {
			p.CompletedCourses = append(p.CompletedCourses, sum)
		}
	}
	return p, nil
}

// CreateStudent creates a student account.
func (s *UserService) CreateStudent(ctx context.Context, req *model.CreateStudentRequest) (*model.User, error) {
	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Avatar:       req.Avatar,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info().Int("user_id", u.ID).Msg("Student created")
	return u, nil
}

// UpdateStudent applies non-empty fields of req to a student.
func (s *UserService) UpdateStudent(ctx context.Context, id int, req *model.UpdateStudentRequest) (*model.User, error) {
	u, err := s.getStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		u.Name = strings.TrimSpace(req.Name)
	}
	if req.Email != "" {
		u.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Avatar != "" {
		u.Avatar = req.Avatar
	}
	if err := s.userRepo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// DeleteStudent removes a student and revokes their token.
func (s *UserService) DeleteStudent(ctx context.Context, id int) error {
	if err := s.userRepo.Delete(ctx, id, model.RoleStudent); err != nil {
		return err
	}
	if err := s.authService.Revoke(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("user_id", id).Msg("Failed to revoke token of deleted student")
	}
	s.log.Info().Int("user_id", id).Msg("Student deleted")
	return nil
}

func (s *UserService) getStudent(ctx context.Context, id int) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleStudent {
		return nil, fmt.Errorf("user %d is not a student: %w", id, exam.ErrNotFound)
	}
	return u, nil
}
