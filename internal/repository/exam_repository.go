package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/model"
)

const examColumns = `e.id, e.course_id, c.title, e.title, e.description, e.duration_minutes,
	e.is_active, e.created_at, e.updated_at`

// ExamRepository handles exams and their questions.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	if err := row.Scan(&e.ID, &e.CourseID, &e.CourseTitle, &e.Title, &e.Description,
		&e.DurationMinutes, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// GetByID retrieves an exam with its questions, active or not.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e JOIN courses c ON c.id = e.course_id
		 WHERE e.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if e.Questions, err = r.listQuestions(ctx, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// GetActiveDefinition retrieves an active exam with its questions in order.
// Inactive exams yield pgx.ErrNoRows.
func (r *ExamRepository) GetActiveDefinition(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e JOIN courses c ON c.id = e.course_id
		 WHERE e.id = $1 AND e.is_active`, id))
	if err != nil {
		return nil, err
	}
	if e.Questions, err = r.listQuestions(ctx, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// LatestActiveByCourse returns the most recently created active exam of a course.
func (r *ExamRepository) LatestActiveByCourse(ctx context.Context, courseID uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e JOIN courses c ON c.id = e.course_id
		 WHERE e.course_id = $1 AND e.is_active
		 ORDER BY e.created_at DESC LIMIT 1`, courseID))
	if err != nil {
		return nil, err
	}
	if e.Questions, err = r.listQuestions(ctx, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// ListActivePaginated lists active exams, optionally for a single course,
// with their questions attached.
func (r *ExamRepository) ListActivePaginated(ctx context.Context, courseID *uuid.UUID, limit, offset int) ([]model.Exam, int, error) {
	where := ` WHERE e.is_active`
	var args []any
	if courseID != nil {
		where += ` AND e.course_id = $1`
		args = append(args, *courseID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + examColumns + ` FROM exams e JOIN courses c ON c.id = e.course_id` + where +
		` ORDER BY e.created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	exams := []model.Exam{}
	ids := []uuid.UUID{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		exams = append(exams, *e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	byExam, err := r.listQuestionsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range exams {
		exams[i].Questions = byExam[exams[i].ID]
	}
	return exams, total, nil
}

// ListActiveIDs returns the IDs of all active exams. Used for cache prewarming.
func (r *ExamRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM exams WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Create inserts an exam and its questions in one transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (course_id, title, description, duration_minutes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, is_active, created_at, updated_at`,
		e.CourseID, e.Title, e.Description, e.DurationMinutes,
	).Scan(&e.ID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}
	if err := insertQuestions(ctx, tx, e.ID, e.Questions); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update overwrites the exam's fields. When replaceQuestions is set the
// question list is deleted and rewritten in the given order.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam, replaceQuestions bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE exams SET title = $1, description = $2, duration_minutes = $3, updated_at = NOW()
		 WHERE id = $4 AND is_active
		 RETURNING updated_at`,
		e.Title, e.Description, e.DurationMinutes, e.ID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return notFound(err)
	}

	if replaceQuestions {
		if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, e.ID); err != nil {
			return err
		}
		if err := insertQuestions(ctx, tx, e.ID, e.Questions); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SoftDelete deactivates an exam. Recorded attempts are kept.
func (r *ExamRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}
	return nil
}

// ─── Questions ──────────────────────────────────────────────────────────────

func insertQuestions(ctx context.Context, tx pgx.Tx, examID uuid.UUID, qs []model.Question) error {
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"id", "exam_id", "position", "prompt", "options", "correct_answer"},
		pgx.CopyFromSlice(len(qs), func(i int) ([]any, error) {
			q := qs[i]
			return []any{q.ID, examID, i, q.Prompt, q.Options, int16(q.CorrectAnswer)}, nil
		}),
	)
	return err
}

func (r *ExamRepository) listQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	byExam, err := r.listQuestionsFor(ctx, []uuid.UUID{examID})
	if err != nil {
		return nil, err
	}
	if qs := byExam[examID]; qs != nil {
		return qs, nil
	}
	return []model.Question{}, nil
}

func (r *ExamRepository) listQuestionsFor(ctx context.Context, examIDs []uuid.UUID) (map[uuid.UUID][]model.Question, error) {
	out := make(map[uuid.UUID][]model.Question, len(examIDs))
	if len(examIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, id, prompt, options, correct_answer
		 FROM exam_questions WHERE exam_id = ANY($1)
		 ORDER BY exam_id, position`, examIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var examID uuid.UUID
		var q model.Question
		var correct int16
		if err := rows.Scan(&examID, &q.ID, &q.Prompt, &q.Options, &correct); err != nil {
			return nil, err
		}
		q.CorrectAnswer = int(correct)
		out[examID] = append(out[examID], q)
	}
	return out, rows.Err()
}
