package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// ListExams godoc
// GET /api/v1/admin/exams
// Lists active exams with pagination, optionally for one ?course_id=.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, perPage := pageQuery(c)

	var courseID *uuid.UUID
	if raw := c.Query("course_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		courseID = &id
	}

	exams, pagination, err := h.examService.List(c.Request.Context(), courseID, page, perPage)
	if err != nil {
		failErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	e, err := h.examService.Create(c.Request.Context(), &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": e})
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
// Returns the exam with its answer key.
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	e, err := h.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": e})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
// A questions array in the body replaces the whole question list.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	e, err := h.examService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": e})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
// Deactivates the exam; recorded attempts stay.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ExamForCourse godoc
// GET /api/v1/student/courses/:id/exam
// Returns the course's current exam without its answer key.
func (h *ExamHandler) ExamForCourse(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	e, err := h.examService.ForCourse(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": e})
}
