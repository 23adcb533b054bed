package response

import (
	"context"

	"github.com/stemsi/elearn-backend/internal/i18n"
)

// ErrCode is a typed error code enum for consistent API error identification.
// Each code doubles as its message ID in the locale files.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotEnrolled       ErrCode = "NOT_ENROLLED"
	ErrAttemptNotOwned   ErrCode = "ATTEMPT_NOT_OWNED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidInput   ErrCode = "INVALID_INPUT"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound   ErrCode = "NOT_FOUND"
	ErrEmailTaken ErrCode = "EMAIL_TAKEN"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrInvalidState      ErrCode = "INVALID_STATE"
	ErrAttemptInProgress ErrCode = "ATTEMPT_IN_PROGRESS"
	ErrPersistence       ErrCode = "PERSISTENCE_ERROR"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"

	errUnknown ErrCode = "UNKNOWN_ERROR"
)

// GetMessage returns the localized message for a code using the localizer
// carried by ctx. Unknown codes get a generic message.
func GetMessage(ctx context.Context, code ErrCode) string {
	msg := i18n.T(ctx, string(code))
	if msg == string(code) {
		return i18n.T(ctx, string(errUnknown))
	}
	return msg
}
