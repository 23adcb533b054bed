package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearn-backend/internal/model"
)

// AttemptRepository stores graded exam attempts. Rows are write-once.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Record stores one attempt. See RecordBatch.
func (r *AttemptRepository) Record(ctx context.Context, a *model.Attempt) error {
	_, err := r.RecordBatch(ctx, []model.Attempt{*a})
	return err
}

// RecordBatch stores attempts with their answers in one transaction and
// marks the course enrollment completed for passing attempts. Attempts whose
// ID already exists are skipped, so replays are harmless. It returns the
// number of newly inserted attempts.
func (r *AttemptRepository) RecordBatch(ctx context.Context, attempts []model.Attempt) (int, error) {
	if len(attempts) == 0 {
		return 0, nil
	}

	n := len(attempts)
	ids := make([]uuid.UUID, n)
	examIDs := make([]uuid.UUID, n)
	userIDs := make([]int32, n)
	scores := make([]int32, n)
	correct := make([]int32, n)
	totals := make([]int32, n)
	passed := make([]bool, n)
	auto := make([]bool, n)
	started := make([]time.Time, n)
	completed := make([]time.Time, n)
	for i, a := range attempts {
		ids[i] = a.ID
		examIDs[i] = a.ExamID
		userIDs[i] = int32(a.LearnerID)
		scores[i] = int32(a.ScorePercent)
		correct[i] = int32(a.CorrectCount)
		totals[i] = int32(a.TotalQuestions)
		passed[i] = a.Passed
		auto[i] = a.AutoFinalized
		started[i] = a.StartedAt
		completed[i] = a.CompletedAt
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`INSERT INTO exam_attempts (id, exam_id, user_id, score, correct_answers, total_questions,
		                            passed, auto_finalized, started_at, completed_at)
		 SELECT * FROM UNNEST($1::uuid[], $2::uuid[], $3::int[], $4::int[], $5::int[], $6::int[],
		                      $7::bool[], $8::bool[], $9::timestamptz[], $10::timestamptz[])
		 ON CONFLICT (id) DO NOTHING
		 RETURNING id`,
		ids, examIDs, userIDs, scores, correct, totals, passed, auto, started, completed)
	if err != nil {
		return 0, err
	}
	inserted, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return 0, err
	}
	if len(inserted) == 0 {
		return 0, tx.Commit(ctx)
	}

	fresh := make(map[uuid.UUID]bool, len(inserted))
	for _, id := range inserted {
		fresh[id] = true
	}

	var answerRows [][]any
	var passUsers []int32
	var passExams []uuid.UUID
	var passAt []time.Time
	for _, a := range attempts {
		if !fresh[a.ID] {
			continue
		}
		for _, ans := range a.Answers {
			var sel *int16
			if ans.SelectedAnswer != nil {
				v := int16(*ans.SelectedAnswer)
				sel = &v
			}
			answerRows = append(answerRows, []any{a.ID, ans.QuestionID, int32(ans.Position), sel})
		}
		if a.Passed {
			passUsers = append(passUsers, int32(a.LearnerID))
			passExams = append(passExams, a.ExamID)
			passAt = append(passAt, a.CompletedAt)
		}
	}

	if len(answerRows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"attempt_answers"},
			[]string{"attempt_id", "question_id", "position", "selected_answer"},
			pgx.CopyFromRows(answerRows),
		); err != nil {
			return 0, err
		}
	}

	if len(passUsers) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE enrollments en
			 SET completed_at = COALESCE(en.completed_at, v.completed_at)
			 FROM (
			     SELECT p.user_id, ex.course_id, p.completed_at
			     FROM UNNEST($1::int[], $2::uuid[], $3::timestamptz[]) AS p(user_id, exam_id, completed_at)
			     JOIN exams ex ON ex.id = p.exam_id
			 ) v
			 WHERE en.user_id = v.user_id AND en.course_id = v.course_id`,
			passUsers, passExams, passAt); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(inserted), nil
}

// GetByID retrieves a recorded attempt with its answers.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, score, correct_answers, total_questions,
		        passed, auto_finalized, started_at, completed_at
		 FROM exam_attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.ExamID, &a.LearnerID, &a.ScorePercent, &a.CorrectCount, &a.TotalQuestions,
		&a.Passed, &a.AutoFinalized, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, position, selected_answer
		 FROM attempt_answers WHERE attempt_id = $1
		 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	a.Answers = []model.AttemptAnswer{}
	for rows.Next() {
		var ans model.AttemptAnswer
		var sel *int16
		if err := rows.Scan(&ans.QuestionID, &ans.Position, &sel); err != nil {
			return nil, err
		}
		if sel != nil {
			v := int(*sel)
			ans.SelectedAnswer = &v
		}
		a.Answers = append(a.Answers, ans)
	}
	return a, rows.Err()
}

const attemptSummaryQuery = `SELECT a.id, a.exam_id, e.title, a.user_id, u.name, a.score, a.correct_answers,
	a.total_questions, a.passed, a.auto_finalized, a.completed_at
	FROM exam_attempts a
	JOIN exams e ON e.id = a.exam_id
	JOIN users u ON u.id = a.user_id`

// ListByLearnerPaginated returns a learner's attempts, newest first.
func (r *AttemptRepository) ListByLearnerPaginated(ctx context.Context, userID, limit, offset int) ([]model.AttemptSummary, int, error) {
	return r.listPaginated(ctx, `a.user_id = $1`, userID, limit, offset)
}

// ListByExamPaginated returns all attempts of an exam, newest first.
func (r *AttemptRepository) ListByExamPaginated(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.AttemptSummary, int, error) {
	return r.listPaginated(ctx, `a.exam_id = $1`, examID, limit, offset)
}

func (r *AttemptRepository) listPaginated(ctx context.Context, cond string, arg any, limit, offset int) ([]model.AttemptSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_attempts a WHERE `+cond, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := attemptSummaryQuery + ` WHERE ` + cond +
		` ORDER BY a.completed_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.AttemptSummary{}
	for rows.Next() {
		var s model.AttemptSummary
		if err := rows.Scan(&s.ID, &s.ExamID, &s.ExamTitle, &s.LearnerID, &s.LearnerName, &s.ScorePercent,
			&s.CorrectCount, &s.TotalQuestions, &s.Passed, &s.AutoFinalized, &s.CompletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
