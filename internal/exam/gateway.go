package exam

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/elearn-backend/internal/model"
)

// DefinitionLoader fetches an active exam with its questions in order.
// A missing or soft-deleted exam yields ErrNotFound.
type DefinitionLoader interface {
	LoadExamDefinition(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

// AttemptRecorder durably stores a graded attempt. Implementations must treat
// a second write of the same attempt ID as a no-op.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *model.Attempt) error
}

// Gateway is the durable store behind exam sessions.
type Gateway interface {
	DefinitionLoader
	AttemptRecorder
}
