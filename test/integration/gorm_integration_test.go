package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/pkg/apperrors"
	"telemed-recording-be/internal/repository/specification"
	"telemed-recording-be/internal/repository/unitofwork"
	"telemed-recording-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.RecordingSessionRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)

	ctx := context.Background()
	repo := uow.RecordingSessionRepository()

	t.Run("Check Recording Session Table", func(t *testing.T) {
		count, err := repo.Count(ctx)
		assert.NoError(t, err)
		t.Logf("Recording session count: %d", count)
	})

	t.Run("Round Trip And CAS", func(t *testing.T) {
		session := &entity.RecordingSession{
			Id:          uuid.New(),
			MeetingId:   "it-meeting-" + uuid.NewString(),
			Status:      entity.SessionAwaitingUploads,
			PatientSlot: entity.ParticipantSlot{Status: entity.SlotPending},
			DoctorSlot:  entity.ParticipantSlot{Status: entity.SlotPending},
			Summary:     entity.Summary{Status: entity.SummaryNotStarted},
			CreatedAt:   time.Now(),
		}
		require.NoError(t, repo.Create(ctx, session))
		defer repo.Delete(ctx, session.Id)

		loaded, err := repo.FindOne(ctx, specification.ByID{ID: session.Id})
		require.NoError(t, err)
		assert.Equal(t, session.MeetingId, loaded.MeetingId)
		assert.Equal(t, entity.SessionAwaitingUploads, loaded.Status)

		// First writer wins the version race.
		stale, err := repo.FindOne(ctx, specification.ByID{ID: session.Id})
		require.NoError(t, err)

		loaded.Status = entity.SessionProcessing
		require.NoError(t, repo.UpdateCAS(ctx, loaded))

		stale.Status = entity.SessionFailed
		err = repo.UpdateCAS(ctx, stale)
		assert.ErrorIs(t, err, apperrors.ErrVersionConflict)

		final, err := repo.FindOne(ctx, specification.ByID{ID: session.Id})
		require.NoError(t, err)
		assert.Equal(t, entity.SessionProcessing, final.Status)
	})
}
