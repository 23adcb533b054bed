package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/model"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// UploadKind selects the whitelist and size limit for an upload.
type UploadKind int

const (
	UploadMaterial UploadKind = iota
	UploadImage
)

// sniffLen is how much of the file is read to detect its type.
const sniffLen = 3072

var imageTypes = map[string]model.MaterialType{
	"image/jpeg": "",
	"image/png":  "",
	"image/gif":  "",
}

var materialTypes = map[string]model.MaterialType{
	"image/jpeg":         "",
	"image/png":          "",
	"image/gif":          "",
	"application/pdf":    model.MaterialPDF,
	"application/msword": model.MaterialDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   model.MaterialDoc,
	"application/vnd.ms-powerpoint":                                             model.MaterialPPT,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": model.MaterialPPT,
	"video/mp4":       model.MaterialVideo,
	"video/x-msvideo": model.MaterialVideo,
	"video/quicktime": model.MaterialVideo,
}

// UploadResult describes a stored file.
type UploadResult struct {
	URL          string             `json:"url"`
	Filename     string             `json:"filename"`
	OriginalName string             `json:"original_name"`
	Size         int64              `json:"size"`
	MimeType     string             `json:"mime_type"`
	MaterialType model.MaterialType `json:"material_type,omitempty"`
}

// MediaService handles file upload operations.
type MediaService struct {
	cfg *config.Config
}

// NewMediaService creates a new MediaService.
func NewMediaService(cfg *config.Config) *MediaService {
	return &MediaService{cfg: cfg}
}

// SaveUpload stores an upload under a UUID filename after checking its
// size and its sniffed content type. The client-declared type is ignored.
func (s *MediaService) SaveUpload(kind UploadKind, file io.Reader, originalName string, size int64) (*UploadResult, error) {
	allowed, limit := materialTypes, s.cfg.MaxUploadBytes
	if kind == UploadImage {
		allowed, limit = imageTypes, s.cfg.MaxImageBytes
	}
	if size > limit {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, size, limit)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	matched, matType := "", model.MaterialType("")
	for t, mt := range allowed {
		if mtype.Is(t) {
			matched, matType = t, mt
			break
		}
	}
	if matched == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mtype.String())
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.New().String() + mtype.Extension()
	destPath := filepath.Join(s.cfg.UploadDir, filename)

	dst, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	// One byte over the limit is enough to know the declared size lied.
	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(head), file), limit+1))
	if err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if written > limit {
		os.Remove(destPath)
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}

	return &UploadResult{
		URL:          "/uploads/" + filename,
		Filename:     filename,
		OriginalName: filepath.Base(originalName),
		Size:         written,
		MimeType:     matched,
		MaterialType: matType,
	}, nil
}
