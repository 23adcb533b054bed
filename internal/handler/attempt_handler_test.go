package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// ─── Fakes ──────────────────────────────────────────────────────────────

type stubGateway struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
	fail  bool
	saved int
}

func (g *stubGateway) LoadExamDefinition(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.exams[id]
	if !ok {
		return nil, exam.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (g *stubGateway) RecordAttempt(_ context.Context, _ *model.Attempt) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("connection refused")
	}
	g.saved++
	return nil
}

func (g *stubGateway) savedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saved
}

type stubEnrollment map[int]bool

func (s stubEnrollment) IsEnrolled(_ context.Context, userID int, _ uuid.UUID) (bool, error) {
	return s[userID], nil
}

type stubQueue struct{}

func (stubQueue) Enqueue(context.Context, *model.Attempt) error { return nil }

func frozenTicks() (<-chan time.Time, func()) {
	return make(chan time.Time), func() {}
}

// ─── Fixture ────────────────────────────────────────────────────────────

type attemptFixture struct {
	router  *gin.Engine
	gateway *stubGateway
	examID  uuid.UUID
}

const (
	enrolledLearner = 7
	otherLearner    = 8
	strangerLearner = 9
)

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	e := &model.Exam{ID: uuid.New(), CourseID: uuid.New(), Title: "Quiz", DurationMinutes: 1, IsActive: true}
	for i := 0; i < 3; i++ {
		e.Questions = append(e.Questions, model.Question{
			ID:            uuid.New(),
			Prompt:        fmt.Sprintf("Q%d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i,
		})
	}
	gw := &stubGateway{exams: map[uuid.UUID]*model.Exam{e.ID: e}}

	sessions := service.NewExamSessionService(
		gw,
		stubEnrollment{enrolledLearner: true, otherLearner: true},
		stubQueue{},
		rdb,
		time.Minute,
		zerolog.Nop(),
		service.WithTickSource(frozenTicks),
	)
	t.Cleanup(sessions.Shutdown)

	h := NewAttemptHandler(sessions, service.NewAttemptService(nil))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		id, _ := strconv.Atoi(c.GetHeader("X-User"))
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: id, Role: model.RoleStudent})
		c.Next()
	})
	r.POST("/exams/:exam_id/attempts", h.StartAttempt)
	r.GET("/attempts/:attempt_id", h.GetAttempt)
	r.PUT("/attempts/:attempt_id/answer", h.SelectAnswer)
	r.POST("/attempts/:attempt_id/goto", h.GoTo)
	r.POST("/attempts/:attempt_id/finish", h.FinishAttempt)
	r.POST("/exams/:id/submit", h.SubmitExam)

	return &attemptFixture{router: r, gateway: gw, examID: e.ID}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (f *attemptFixture) do(t *testing.T, method, path string, user int, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", strconv.Itoa(user))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w.Code, env
}

func (f *attemptFixture) start(t *testing.T, user int) string {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/exams/"+f.examID.String()+"/attempts", user, nil)
	if code != http.StatusCreated {
		t.Fatalf("start: status %d, error %+v", code, env.Error)
	}
	var data struct {
		Attempt struct {
			AttemptID string `json:"attempt_id"`
			State     string `json:"state"`
		} `json:"attempt"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if data.Attempt.State != string(exam.StateInProgress) {
		t.Fatalf("expected IN_PROGRESS, got %s", data.Attempt.State)
	}
	return data.Attempt.AttemptID
}

func expectError(t *testing.T, code int, env envelope, wantStatus int, wantCode response.ErrCode) {
	t.Helper()
	if code != wantStatus {
		t.Fatalf("status %d, want %d (error %+v)", code, wantStatus, env.Error)
	}
	if env.Error == nil || env.Error.Code != wantCode {
		t.Fatalf("error %+v, want code %s", env.Error, wantCode)
	}
}

// ─── Tests ──────────────────────────────────────────────────────────────

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	f := newAttemptFixture(t)
	id := f.start(t, enrolledLearner)
	base := "/attempts/" + id

	code, env := f.do(t, http.MethodPost, "/exams/"+f.examID.String()+"/attempts", enrolledLearner, nil)
	expectError(t, code, env, http.StatusConflict, response.ErrAttemptInProgress)

	for i, opt := range []int{0, 1, 0} {
		if code, env := f.do(t, http.MethodPost, base+"/goto", enrolledLearner, gin.H{"index": i}); code != http.StatusOK {
			t.Fatalf("goto %d: %d %+v", i, code, env.Error)
		}
		if code, env := f.do(t, http.MethodPut, base+"/answer", enrolledLearner, gin.H{"option": opt}); code != http.StatusOK {
			t.Fatalf("answer %d: %d %+v", i, code, env.Error)
		}
	}

	code, env = f.do(t, http.MethodPost, base+"/finish", enrolledLearner, nil)
	if code != http.StatusOK {
		t.Fatalf("finish: %d %+v", code, env.Error)
	}
	var graded struct {
		Score    int  `json:"score_percent"`
		Correct  int  `json:"correct_count"`
		Passed   bool `json:"passed"`
		Recorded bool `json:"recorded"`
	}
	if err := json.Unmarshal(env.Data, &graded); err != nil {
		t.Fatalf("decode finish: %v", err)
	}
	if graded.Score != 67 || graded.Correct != 2 || !graded.Passed || !graded.Recorded {
		t.Errorf("unexpected result: %+v", graded)
	}

	// Finishing again returns the same result without a second write.
	code, _ = f.do(t, http.MethodPost, base+"/finish", enrolledLearner, nil)
	if code != http.StatusOK {
		t.Fatalf("second finish: %d", code)
	}
	if n := f.gateway.savedCount(); n != 1 {
		t.Errorf("expected 1 write, got %d", n)
	}

	// Answers are sealed once graded.
	code, env = f.do(t, http.MethodPut, base+"/answer", enrolledLearner, gin.H{"option": 2})
	expectError(t, code, env, http.StatusConflict, response.ErrInvalidState)
}

func TestAttemptRequestErrors(t *testing.T) {
	f := newAttemptFixture(t)
	id := f.start(t, enrolledLearner)
	base := "/attempts/" + id

	tests := []struct {
		name       string
		method     string
		path       string
		user       int
		body       any
		wantStatus int
		wantCode   response.ErrCode
	}{
		{"option out of range", http.MethodPut, base + "/answer", enrolledLearner, gin.H{"option": 7}, http.StatusUnprocessableEntity, response.ErrInvalidInput},
		{"missing option", http.MethodPut, base + "/answer", enrolledLearner, gin.H{}, http.StatusBadRequest, response.ErrValidation},
		{"index out of range", http.MethodPost, base + "/goto", enrolledLearner, gin.H{"index": 3}, http.StatusUnprocessableEntity, response.ErrInvalidInput},
		{"foreign attempt", http.MethodGet, base, otherLearner, nil, http.StatusForbidden, response.ErrAttemptNotOwned},
		{"unknown attempt", http.MethodGet, "/attempts/" + uuid.NewString(), enrolledLearner, nil, http.StatusNotFound, response.ErrNotFound},
		{"malformed attempt id", http.MethodGet, "/attempts/nope", enrolledLearner, nil, http.StatusBadRequest, response.ErrInvalidID},
		{"not enrolled", http.MethodPost, "/exams/" + f.examID.String() + "/attempts", strangerLearner, nil, http.StatusForbidden, response.ErrNotEnrolled},
		{"unknown exam", http.MethodPost, "/exams/" + uuid.NewString() + "/attempts", enrolledLearner, nil, http.StatusNotFound, response.ErrNotFound},
		{"too many answers", http.MethodPost, "/exams/" + f.examID.String() + "/submit", otherLearner, gin.H{"answers": []int{0, 1, 2, 3}}, http.StatusUnprocessableEntity, response.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.do(t, tt.method, tt.path, tt.user, tt.body)
			expectError(t, code, env, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestFinishReportsPendingWrite(t *testing.T) {
	f := newAttemptFixture(t)
	f.gateway.fail = true
	id := f.start(t, enrolledLearner)

	code, env := f.do(t, http.MethodPost, "/attempts/"+id+"/finish", enrolledLearner, nil)
	expectError(t, code, env, http.StatusAccepted, response.ErrPersistence)

	var graded struct {
		Score    int  `json:"score_percent"`
		Recorded bool `json:"recorded"`
	}
	if err := json.Unmarshal(env.Data, &graded); err != nil {
		t.Fatalf("decode finish: %v", err)
	}
	if graded.Recorded || graded.Score != 0 {
		t.Errorf("unexpected pending result: %+v", graded)
	}
}

func TestSubmitGradesWholeSheet(t *testing.T) {
	f := newAttemptFixture(t)

	code, env := f.do(t, http.MethodPost, "/exams/"+f.examID.String()+"/submit", otherLearner, gin.H{"answers": []any{0, nil, 2}})
	if code != http.StatusOK {
		t.Fatalf("submit: %d %+v", code, env.Error)
	}
	var graded struct {
		Correct int  `json:"correct_count"`
		Total   int  `json:"total_questions"`
		Passed  bool `json:"passed"`
	}
	if err := json.Unmarshal(env.Data, &graded); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if graded.Correct != 2 || graded.Total != 3 || !graded.Passed {
		t.Errorf("unexpected result: %+v", graded)
	}
}

func TestErrorStatusPrefersSpecificSentinels(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{service.ErrAttemptInProgress, http.StatusConflict, response.ErrAttemptInProgress},
		{fmt.Errorf("wrap: %w", exam.ErrInvalidState), http.StatusConflict, response.ErrInvalidState},
		{&exam.PersistenceError{Err: errors.New("down")}, http.StatusServiceUnavailable, response.ErrPersistence},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		status, code := errorStatus(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("errorStatus(%v) = %d %s; want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}
