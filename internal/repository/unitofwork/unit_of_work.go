package unitofwork

import (
	"context"

	"telemed-recording-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	RecordingSessionRepository() contract.IRecordingSessionRepository
}
