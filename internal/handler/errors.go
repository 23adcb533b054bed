package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/exam"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
)

// errorStatus maps a service or domain error to an HTTP status and code.
// More specific sentinels come first: ErrAttemptInProgress also matches
// exam.ErrInvalidState.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrAttemptInProgress):
		return http.StatusConflict, response.ErrAttemptInProgress
	case errors.Is(err, service.ErrAttemptNotOwned):
		return http.StatusForbidden, response.ErrAttemptNotOwned
	case errors.Is(err, service.ErrNotEnrolled):
		return http.StatusForbidden, response.ErrNotEnrolled
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response.ErrEmailTaken
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrUnsupportedFileType):
		return http.StatusBadRequest, response.ErrUnsupportedFile
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, response.ErrFileTooLarge
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, exam.ErrInvalidState):
		return http.StatusConflict, response.ErrInvalidState
	case errors.Is(err, exam.ErrInvalidInput):
		return http.StatusUnprocessableEntity, response.ErrInvalidInput
	case errors.Is(err, exam.ErrPersistence):
		return http.StatusServiceUnavailable, response.ErrPersistence
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failErr writes the mapped error response. Unmapped errors are attached to
// the gin context so the logger middleware records them.
func failErr(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
