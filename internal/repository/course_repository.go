package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

const courseColumns = `c.id, c.title, c.description, c.instructor, c.instructor_avatar, c.duration,
	c.level, c.price, c.rating, c.image, c.category, c.tags, c.syllabus, c.is_active,
	c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM enrollments en WHERE en.course_id = c.id)`

// CourseRepository handles courses, their materials and enrollments.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

func scanCourse(row pgx.Row, extra ...any) (*model.Course, error) {
	c := &model.Course{}
	dest := []any{&c.ID, &c.Title, &c.Description, &c.Instructor, &c.InstructorAvatar, &c.Duration,
		&c.Level, &c.Price, &c.Rating, &c.Image, &c.Category, &c.Tags, &c.Syllabus, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt, &c.Students}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListActivePaginated lists active courses matching the filter.
func (r *CourseRepository) ListActivePaginated(ctx context.Context, f model.CourseFilter, limit, offset int) ([]model.Course, int, error) {
	conds := []string{"c.is_active"}
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, "c.category = $"+strconv.Itoa(len(args)))
	}
	if f.Level != "" {
		args = append(args, f.Level)
		conds = append(conds, "c.level = $"+strconv.Itoa(len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(c.title ILIKE $"+n+" OR c.description ILIKE $"+n+" OR c.instructor ILIKE $"+n+")")
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + courseColumns + ` FROM courses c` + where +
		` ORDER BY c.created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		courses = append(courses, *c)
	}
	return courses, total, rows.Err()
}

// GetByID retrieves a course with its materials, whether active or not.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses c WHERE c.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if c.Materials, err = r.ListMaterials(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (title, description, instructor, instructor_avatar, duration, level,
		                      price, rating, image, category, tags, syllabus)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, is_active, created_at, updated_at`,
		c.Title, c.Description, c.Instructor, c.InstructorAvatar, c.Duration, c.Level,
		c.Price, c.Rating, c.Image, c.Category, nonNil(c.Tags), nonNil(c.Syllabus),
	).Scan(&c.ID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
}

// Update overwrites the editable columns of a course.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE courses SET title = $1, description = $2, instructor = $3, instructor_avatar = $4,
		        duration = $5, level = $6, price = $7, rating = $8, image = $9, category = $10,
		        tags = $11, syllabus = $12, updated_at = NOW()
		 WHERE id = $13
		 RETURNING updated_at`,
		c.Title, c.Description, c.Instructor, c.InstructorAvatar, c.Duration, c.Level,
		c.Price, c.Rating, c.Image, c.Category, nonNil(c.Tags), nonNil(c.Syllabus), c.ID,
	).Scan(&c.UpdatedAt)
	return notFound(err)
}

// SoftDelete deactivates a course and its exams.
func (r *CourseRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE courses SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE exams SET is_active = FALSE, updated_at = NOW() WHERE course_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ─── Materials ──────────────────────────────────────────────────────────────

// ListMaterials returns a course's materials in upload order.
func (r *CourseRepository) ListMaterials(ctx context.Context, courseID uuid.UUID) ([]model.Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, title, type, url, filename, size, created_at
		 FROM course_materials WHERE course_id = $1
		 ORDER BY created_at`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := []model.Material{}
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Type, &m.URL, &m.Filename, &m.Size, &m.CreatedAt); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// AddMaterial attaches a material to a course.
func (r *CourseRepository) AddMaterial(ctx context.Context, m *model.Material) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO course_materials (course_id, title, type, url, filename, size)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		m.CourseID, m.Title, m.Type, m.URL, m.Filename, m.Size,
	).Scan(&m.ID, &m.CreatedAt)
}

// ─── Enrollments ────────────────────────────────────────────────────────────

// Enroll adds a student to a course. Enrolling twice is a no-op and
// reports created=false.
func (r *CourseRepository) Enroll(ctx context.Context, userID int, courseID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, course_id) DO NOTHING`, userID, courseID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IsEnrolled reports whether the student is enrolled in the course.
func (r *CourseRepository) IsEnrolled(ctx context.Context, userID int, courseID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID).Scan(&ok)
	return ok, err
}

// ListEnrolled returns the courses a student is enrolled in, newest first.
func (r *CourseRepository) ListEnrolled(ctx context.Context, userID int) ([]model.EnrolledCourse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+`, e.enrolled_at, e.completed_at
		 FROM enrollments e JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrolled_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.EnrolledCourse{}
	for rows.Next() {
		var enrolledAt time.Time
		var completedAt *time.Time
		c, err := scanCourse(rows, &enrolledAt, &completedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, model.EnrolledCourse{Course: *c, EnrolledAt: enrolledAt, CompletedAt: completedAt})
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
