package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// StudentManagementHandler handles admin-facing student management.
type StudentManagementHandler struct {
	userService *service.UserService
}

// NewStudentManagementHandler creates a new StudentManagementHandler.
func NewStudentManagementHandler(userService *service.UserService) *StudentManagementHandler {
	return &StudentManagementHandler{userService: userService}
}

// ListStudents godoc
// GET /api/v1/admin/students
// Lists students with pagination, optionally filtered by ?search= on name or email.
func (h *StudentManagementHandler) ListStudents(c *gin.Context) {
	page, perPage := pageQuery(c)

	students, pagination, err := h.userService.ListStudents(c.Request.Context(), c.Query("search"), page, perPage)
	if err != nil {
		failErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// GetStudent godoc
// GET /api/v1/admin/students/:id
// Returns a student with enrolled and completed courses and exam results.
func (h *StudentManagementHandler) GetStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.userService.GetStudent(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": profile})
}

// CreateStudent godoc
// POST /api/v1/admin/students
func (h *StudentManagementHandler) CreateStudent(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.userService.CreateStudent(c.Request.Context(), &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// UpdateStudent godoc
// PUT /api/v1/admin/students/:id
func (h *StudentManagementHandler) UpdateStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.userService.UpdateStudent(c.Request.Context(), id, &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// DeleteStudent godoc
// DELETE /api/v1/admin/students/:id
func (h *StudentManagementHandler) DeleteStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.userService.DeleteStudent(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
