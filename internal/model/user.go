package model

import "time"

// Role distinguishes platform administrators from learners.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// User is any account on the platform. Students are users with RoleStudent.
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentProfile is the admin view of a student with their learning record.
type StudentProfile struct {
	User
	EnrolledCourses  []CourseSummary  `json:"enrolled_courses"`
	CompletedCourses []CourseSummary  `json:"completed_courses"`
	ExamResults      []AttemptSummary `json:"exam_results"`
}

// RegisterRequest is the payload for self-registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest is the payload for email/password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateStudentRequest is the payload for an admin creating a student.
type CreateStudentRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Avatar   string `json:"avatar" binding:"omitempty,url"`
}

// UpdateStudentRequest is the payload for updating a student. Passwords
// cannot be changed through this request.
type UpdateStudentRequest struct {
	Name   string `json:"name" binding:"omitempty,min=2,max=100"`
	Email  string `json:"email" binding:"omitempty,email,max=255"`
	Avatar string `json:"avatar" binding:"omitempty,url"`
}
