package contract

import (
	"context"

	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/repository/specification"

	"github.com/google/uuid"
)

type IRecordingSessionRepository interface {
	Create(ctx context.Context, session *entity.RecordingSession) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecordingSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecordingSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// UpdateCAS persists the session only when the stored version still
	// matches session.Version, then bumps the version. Returns
	// apperrors.ErrVersionConflict when another writer won the race.
	UpdateCAS(ctx context.Context, session *entity.RecordingSession) error

	Delete(ctx context.Context, id uuid.UUID) error
}
