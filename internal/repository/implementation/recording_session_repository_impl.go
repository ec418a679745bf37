package implementation

import (
	"context"
	"errors"

	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/mapper"
	"telemed-recording-be/internal/model"
	"telemed-recording-be/internal/pkg/apperrors"
	"telemed-recording-be/internal/repository/contract"
	"telemed-recording-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type recordingSessionRepository struct {
	db     *gorm.DB
	mapper *mapper.RecordingSessionMapper
}

func NewRecordingSessionRepository(db *gorm.DB) contract.IRecordingSessionRepository {
	return &recordingSessionRepository{db: db, mapper: mapper.NewRecordingSessionMapper()}
}

func (r *recordingSessionRepository) applySpecs(db *gorm.DB, specs []specification.Specification) *gorm.DB {
	for _, s := range specs {
		db = s.Apply(db)
	}
	return db
}

func (r *recordingSessionRepository) Create(ctx context.Context, session *entity.RecordingSession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	session.Id = m.Id
	session.Version = m.Version
	session.CreatedAt = m.CreatedAt
	return nil
}

func (r *recordingSessionRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecordingSession, error) {
	var m model.RecordingSession
	query := r.applySpecs(r.db.WithContext(ctx).Model(&model.RecordingSession{}), specs)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *recordingSessionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecordingSession, error) {
	var models []*model.RecordingSession
	query := r.applySpecs(r.db.WithContext(ctx).Model(&model.RecordingSession{}), specs)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *recordingSessionRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecs(r.db.WithContext(ctx).Model(&model.RecordingSession{}), specs)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateCAS writes the full row guarded by the version column.
// Select("*") forces zero values through, so cleared fields persist.
func (r *recordingSessionRepository) UpdateCAS(ctx context.Context, session *entity.RecordingSession) error {
	m := r.mapper.ToModel(session)
	expected := session.Version
	m.Version = expected + 1

	result := r.db.WithContext(ctx).
		Model(&model.RecordingSession{}).
		Where("id = ? AND version = ?", session.Id, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	session.Version = expected + 1
	return nil
}

func (r *recordingSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.RecordingSession{}, "id = ?", id).Error
}
