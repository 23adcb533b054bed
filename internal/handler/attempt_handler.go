package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// AttemptHandler exposes live exam sessions and recorded attempts.
type AttemptHandler struct {
	sessionService *service.ExamSessionService
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(sessionService *service.ExamSessionService, attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{
		sessionService: sessionService,
		attemptService: attemptService,
	}
}

// gradedBody is the finish response.
type gradedBody struct {
	exam.Result
	AttemptID     string `json:"attempt_id"`
	AutoFinalized bool   `json:"auto_finalized"`
	Recorded      bool   `json:"recorded"`
}

func newGradedBody(out exam.Outcome) gradedBody {
	return gradedBody{
		Result:        out.Result,
		AttemptID:     out.Attempt.ID.String(),
		AutoFinalized: out.Attempt.AutoFinalized,
		Recorded:      out.Recorded,
	}
}

// writeOutcome sends 200 for a recorded attempt and 202 with a
// PERSISTENCE_ERROR body when the score stands but the write is pending.
func writeOutcome(c *gin.Context, out exam.Outcome, err error) {
	if err != nil {
		if errors.Is(err, exam.ErrPersistence) {
			response.Accepted(c, newGradedBody(out), response.ErrPersistence)
			return
		}
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, newGradedBody(out))
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Starts the exam clock. One in-progress attempt per learner per exam.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	view, err := h.sessionService.Start(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": view})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	view, err := h.sessionService.View(claims.UserID, attemptID)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// SelectAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/answer
// Body: {"option": 0..3} for the current question.
func (h *AttemptHandler) SelectAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.SelectAnswer(claims.UserID, attemptID, *req.Option)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// GoTo godoc
// POST /api/v1/student/attempts/:attempt_id/goto
// Body: {"index": n}.
func (h *AttemptHandler) GoTo(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.GoToRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.GoTo(claims.UserID, attemptID, *req.Index)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// FinishAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/finish
// Grades and records the attempt. Calling it again returns the same result.
func (h *AttemptHandler) FinishAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	out, err := h.sessionService.Finish(c.Request.Context(), claims.UserID, attemptID)
	writeOutcome(c, out, err)
}

// RetryRecord godoc
// POST /api/v1/student/attempts/:attempt_id/record
// Retries the durable write of a graded attempt.
func (h *AttemptHandler) RetryRecord(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	out, err := h.sessionService.RetryRecord(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, newGradedBody(out))
}

// SubmitExam godoc
// POST /api/v1/exams/:id/submit
// One-shot grading of a full answer sheet.
func (h *AttemptHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.sessionService.Submit(c.Request.Context(), claims.UserID, examID, req.Answers)
	writeOutcome(c, out, err)
}

// History godoc
// GET /api/v1/student/attempts
// The learner's recorded attempts, newest first.
func (h *AttemptHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	page, perPage := pageQuery(c)

	items, pagination, err := h.attemptService.History(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		failErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": items}, pagination)
}

// ListExamAttempts godoc
// GET /api/v1/admin/exams/:id/attempts
func (h *AttemptHandler) ListExamAttempts(c *gin.Context) {
	examID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	page, perPage := pageQuery(c)

	items, pagination, err := h.attemptService.ListForExam(c.Request.Context(), examID, page, perPage)
	if err != nil {
		failErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": items}, pagination)
}

// GetRecordedAttempt godoc
// GET /api/v1/admin/attempts/:attempt_id
// Returns a recorded attempt with its answers.
func (h *AttemptHandler) GetRecordedAttempt(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	a, err := h.attemptService.GetRecorded(c.Request.Context(), 0, attemptID)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": a})
}
