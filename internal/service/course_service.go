package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/repository"
	"github.com/stemsi/elearn-backend/internal/response"
)

// ErrNotEnrolled is returned when a student acts on a course they have not joined.
var ErrNotEnrolled = errors.New("not enrolled in course")

// CourseService handles the course catalogue, materials and enrollments.
type CourseService struct {
	courseRepo *repository.CourseRepository
	log        zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(courseRepo *repository.CourseRepository, log zerolog.Logger) *CourseService {
	return &CourseService{
		courseRepo: courseRepo,
		log:        log.With().Str("component", "course_service").Logger(),
	}
}

// List returns a page of active courses.
func (s *CourseService) List(ctx context.Context, f model.CourseFilter, page, perPage int) ([]model.Course, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	courses, total, err := s.courseRepo.ListActivePaginated(ctx, f, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return courses, response.NewPagination(page, perPage, total), nil
}

// GetActive returns an active course with its materials.
func (s *CourseService) GetActive(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	c, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, fmt.Errorf("course %s is inactive: %w", id, exam.ErrNotFound)
	}
	return c, nil
}

// Create adds a course to the catalogue.
func (s *CourseService) Create(ctx context.Context, req *model.CreateCourseRequest) (*model.Course, error) {
	c := &model.Course{
		Title:            req.Title,
		Description:      req.Description,
		Instructor:       req.Instructor,
		InstructorAvatar: req.InstructorAvatar,
		Duration:         req.Duration,
		Level:            model.CourseLevel(req.Level),
		Price:            req.Price,
		Rating:           req.Rating,
		Image:            req.Image,
		Category:         req.Category,
		Tags:             req.Tags,
		Syllabus:         req.Syllabus,
		Materials:        []model.Material{},
	}
	if err := s.courseRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("course_id", c.ID.String()).Msg("Course created")
	return c, nil
}

// Update applies the non-nil fields of req to an active course.
func (s *CourseService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateCourseRequest) (*model.Course, error) {
	c, err := s.GetActive(ctx, id)
	if err != nil {
		return nil, err
	}

	setString(&c.Title, req.Title)
	setString(&c.Description, req.Description)
	setString(&c.Instructor, req.Instructor)
	setString(&c.InstructorAvatar, req.InstructorAvatar)
	setString(&c.Duration, req.Duration)
	setString(&c.Image, req.Image)
	setString(&c.Category, req.Category)
	if req.Level != nil {
		c.Level = model.CourseLevel(*req.Level)
	}
	if req.Price != nil {
		c.Price = *req.Price
	}
	if req.Rating != nil {
		c.Rating = *req.Rating
	}
	if req.Tags != nil {
		c.Tags = req.Tags
	}
	if req.Syllabus != nil {
		c.Syllabus = req.Syllabus
	}

	if err := s.courseRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete soft-deletes a course together with its exams.
func (s *CourseService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.courseRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("course_id", id.String()).Msg("Course deactivated")
	return nil
}

// AddMaterial attaches a material to an active course.
func (s *CourseService) AddMaterial(ctx context.Context, courseID uuid.UUID, req *model.AddMaterialRequest) (*model.Material, error) {
	if _, err := s.GetActive(ctx, courseID); err != nil {
		return nil, err
	}
	m := &model.Material{
		CourseID: courseID,
		Title:    req.Title,
		Type:     model.MaterialType(req.Type),
		URL:      req.URL,
		Filename: req.Filename,
		Size:     req.Size,
	}
	if err := s.courseRepo.AddMaterial(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Enroll joins a student to an active course. Joining twice is not an error.
func (s *CourseService) Enroll(ctx context.Context, userID int, courseID uuid.UUID) (bool, error) {
	if _, err := s.GetActive(ctx, courseID); err != nil {
		return false, err
	}
	created, err := s.courseRepo.Enroll(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info().Int("user_id", userID).Str("course_id", courseID.String()).Msg("Student enrolled")
	}
	return created, nil
}

// IsEnrolled reports whether a student has joined a course.
func (s *CourseService) IsEnrolled(ctx context.Context, userID int, courseID uuid.UUID) (bool, error) {
	return s.courseRepo.IsEnrolled(ctx, userID, courseID)
}

// MyCourses lists a student's enrolled courses.
func (s *CourseService) MyCourses(ctx context.Context, userID int) ([]model.EnrolledCourse, error) {
	return s.courseRepo.ListEnrolled(ctx, userID)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
