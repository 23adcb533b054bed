package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// CourseHandler handles the course catalogue and its administration.
type CourseHandler struct {
	courseService *service.CourseService
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// ListCourses godoc
// GET /api/v1/courses
// Lists active courses; filters: ?category=, ?level=, ?search=.
func (h *CourseHandler) ListCourses(c *gin.Context) {
	page, perPage := pageQuery(c)
	filter := model.CourseFilter{
		Category: c.Query("category"),
		Level:    c.Query("level"),
		Search:   c.Query("search"),
	}

	courses, pagination, err := h.courseService.List(c.Request.Context(), filter, page, perPage)
	if err != nil {
		failErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"courses": courses}, pagination)
}

// GetCourse godoc
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.GetActive(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// CreateCourse godoc
// POST /api/v1/admin/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"course": course})
}

// UpdateCourse godoc
// PUT /api/v1/admin/courses/:id
// Only fields present in the body are changed.
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Update(c.Request.Context(), id, &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// DeleteCourse godoc
// DELETE /api/v1/admin/courses/:id
// Soft-deletes the course and deactivates its exams.
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.courseService.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// AddMaterial godoc
// POST /api/v1/admin/courses/:id/materials
func (h *CourseHandler) AddMaterial(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.AddMaterialRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	material, err := h.courseService.AddMaterial(c.Request.Context(), id, &req)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"material": material})
}

// Enroll godoc
// POST /api/v1/student/courses/:id/enroll
// Enrolling twice returns 200 with enrolled=false.
func (h *CourseHandler) Enroll(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	created, err := h.courseService.Enroll(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failErr(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"enrolled": created})
}

// MyCourses godoc
// GET /api/v1/student/courses
func (h *CourseHandler) MyCourses(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	courses, err := h.courseService.MyCourses(c.Request.Context(), claims.UserID)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}
