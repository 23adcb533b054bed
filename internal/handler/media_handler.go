package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
)

// MediaHandler handles media upload endpoints.
type MediaHandler struct {
	mediaService *service.MediaService
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(mediaService *service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// UploadMaterial godoc
// POST /api/v1/admin/uploads/material
// Stores a course material (form field "file") and returns its URL.
func (h *MediaHandler) UploadMaterial(c *gin.Context) {
	h.upload(c, "file", service.UploadMaterial)
}

// UploadImage godoc
// POST /api/v1/admin/uploads/image
// Stores an image (form field "image") and returns its URL.
func (h *MediaHandler) UploadImage(c *gin.Context) {
	h.upload(c, "image", service.UploadImage)
}

func (h *MediaHandler) upload(c *gin.Context, field string, kind service.UploadKind) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	res, err := h.mediaService.SaveUpload(kind, file, header.Filename, header.Size)
	if err != nil {
		failErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"file": res})
}
