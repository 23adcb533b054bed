package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearn-backend/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts retrieves the stat cards. Revenue is the course price
// summed over every enrollment.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (model.DashboardCounts, error) {
	var c model.DashboardCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM courses WHERE is_active),
			(SELECT COUNT(*) FROM exams WHERE is_active),
			(SELECT COUNT(*) FROM enrollments),
			(SELECT COUNT(*) FROM exam_attempts),
			(SELECT COUNT(*) FROM exam_attempts WHERE passed),
			(SELECT COALESCE(SUM(c.price), 0) FROM enrollments en JOIN courses c ON c.id = en.course_id)`,
	).Scan(&c.Students, &c.Courses, &c.Exams, &c.Enrollments, &c.Attempts, &c.PassedAttempts, &c.Revenue)
	return c, err
}

// GetPopularCourses returns active courses ordered by enrollment count.
func (r *DashboardRepository) GetPopularCourses(ctx context.Context, limit int) ([]model.DashboardCourse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.title, c.instructor,
		        COUNT(en.user_id),
		        COUNT(en.completed_at)
		 FROM courses c
		 LEFT JOIN enrollments en ON en.course_id = c.id
		 WHERE c.is_active
		 GROUP BY c.id, c.title, c.instructor
		 ORDER BY COUNT(en.user_id) DESC, c.title
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []model.DashboardCourse{}
	for rows.Next() {
		var c model.DashboardCourse
		if err := rows.Scan(&c.ID, &c.Title, &c.Instructor, &c.Enrolled, &c.Completed); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// GetExamResults summarizes recorded attempts per exam, most recently
// attempted first.
func (r *DashboardRepository) GetExamResults(ctx context.Context, limit int) ([]model.DashboardExamResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title,
		        COUNT(a.id),
		        COUNT(a.id) FILTER (WHERE a.passed),
		        AVG(a.score)::float8,
		        MAX(a.completed_at)
		 FROM exams e
		 JOIN exam_attempts a ON a.exam_id = e.id
		 GROUP BY e.id, e.title
		 ORDER BY MAX(a.completed_at) DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.DashboardExamResult{}
	for rows.Next() {
		var res model.DashboardExamResult
		if err := rows.Scan(&res.ID, &res.Title, &res.Attempts, &res.Passed, &res.AverageScore, &res.LastAttemptAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
