package model

import (
	"time"

	"github.com/google/uuid"
)

// CourseLevel is the difficulty band of a course.
type CourseLevel string

const (
	CourseLevelBeginner     CourseLevel = "Beginner"
	CourseLevelIntermediate CourseLevel = "Intermediate"
	CourseLevelAdvanced     CourseLevel = "Advanced"
)

// MaterialType enumerates the kinds of course material.
type MaterialType string

const (
	MaterialVideo MaterialType = "video"
	MaterialPDF   MaterialType = "pdf"
	MaterialPPT   MaterialType = "ppt"
	MaterialDoc   MaterialType = "doc"
)

// Course represents a course in the catalogue.
type Course struct {
	ID               uuid.UUID   `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Instructor       string      `json:"instructor"`
	InstructorAvatar string      `json:"instructor_avatar"`
	Duration         string      `json:"duration"`
	Level            CourseLevel `json:"level"`
	Price            float64     `json:"price"`
	Rating           float64     `json:"rating"`
	Students         int         `json:"students"`
	Image            string      `json:"image"`
	Category         string      `json:"category"`
	Tags             []string    `json:"tags"`
	Syllabus         []string    `json:"syllabus"`
	Materials        []Material  `json:"materials"`
	IsActive         bool        `json:"is_active"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Material is a downloadable or streamable resource attached to a course.
type Material struct {
	ID        uuid.UUID    `json:"id"`
	CourseID  uuid.UUID    `json:"course_id"`
	Title     string       `json:"title"`
	Type      MaterialType `json:"type"`
	URL       string       `json:"url"`
	Filename  string       `json:"filename,omitempty"`
	Size      int64        `json:"size,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// CourseSummary is the short form used in student profiles.
type CourseSummary struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Instructor string    `json:"instructor"`
}

// CourseFilter narrows the public course listing.
type CourseFilter struct {
	Category string
	Level    string
	Search   string
}

// Enrollment links a student to a course.
type Enrollment struct {
	UserID      int        `json:"user_id"`
	CourseID    uuid.UUID  `json:"course_id"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// EnrolledCourse is a course as listed on a student's dashboard.
type EnrolledCourse struct {
	Course
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Title            string   `json:"title" binding:"required,min=3,max=255"`
	Description      string   `json:"description" binding:"required,max=5000"`
	Instructor       string   `json:"instructor" binding:"required,max=255"`
	InstructorAvatar string   `json:"instructor_avatar" binding:"omitempty,max=1024"`
	Duration         string   `json:"duration" binding:"required,max=64"`
	Level            string   `json:"level" binding:"required,oneof=Beginner Intermediate Advanced"`
	Price            float64  `json:"price" binding:"min=0"`
	Rating           float64  `json:"rating" binding:"min=0,max=5"`
	Image            string   `json:"image" binding:"omitempty,max=1024"`
	Category         string   `json:"category" binding:"required,max=100"`
	Tags             []string `json:"tags" binding:"omitempty,dive,max=50"`
	Syllabus         []string `json:"syllabus" binding:"omitempty,dive,max=255"`
}

// UpdateCourseRequest is the payload for updating a course. Nil fields are left unchanged.
type UpdateCourseRequest struct {
	Title            *string  `json:"title" binding:"omitempty,min=3,max=255"`
	Description      *string  `json:"description" binding:"omitempty,max=5000"`
	Instructor       *string  `json:"instructor" binding:"omitempty,max=255"`
	InstructorAvatar *string  `json:"instructor_avatar" binding:"omitempty,max=1024"`
	Duration         *string  `json:"duration" binding:"omitempty,max=64"`
	Level            *string  `json:"level" binding:"omitempty,oneof=Beginner Intermediate Advanced"`
	Price            *float64 `json:"price" binding:"omitempty,min=0"`
	Rating           *float64 `json:"rating" binding:"omitempty,min=0,max=5"`
	Image            *string  `json:"image" binding:"omitempty,max=1024"`
	Category         *string  `json:"category" binding:"omitempty,max=100"`
	Tags             []string `json:"tags" binding:"omitempty,dive,max=50"`
	Syllabus         []string `json:"syllabus" binding:"omitempty,dive,max=255"`
}

// AddMaterialRequest attaches an uploaded file (or external link) to a course.
type AddMaterialRequest struct {
	Title    string `json:"title" binding:"required,max=255"`
	Type     string `json:"type" binding:"required,oneof=video pdf ppt doc"`
	URL      string `json:"url" binding:"required,max=1024"`
	Filename string `json:"filename" binding:"omitempty,max=255"`
	Size     int64  `json:"size" binding:"omitempty,min=0"`
}
