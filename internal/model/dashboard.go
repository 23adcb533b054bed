package model

import (
	"time"

	"github.com/google/uuid"
)

// DashboardCounts are the admin dashboard stat cards.
type DashboardCounts struct {
	Students       int     `json:"total_students"`
	Courses        int     `json:"total_courses"`
	Exams          int     `json:"total_exams"`
	Enrollments    int     `json:"total_enrollments"`
	Attempts       int     `json:"total_attempts"`
	PassedAttempts int     `json:"passed_attempts"`
	Revenue        float64 `json:"revenue"`
}

// DashboardCourse is a course ranked by enrollments.
type DashboardCourse struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Instructor string    `json:"instructor"`
	Enrolled   int       `json:"enrolled"`
	Completed  int       `json:"completed"`
}

// DashboardExamResult aggregates the recorded attempts of one exam.
type DashboardExamResult struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Attempts      int       `json:"attempts"`
	Passed        int       `json:"passed"`
	AverageScore  float64   `json:"average_score"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}
