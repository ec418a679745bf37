package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telemed-recording-be/internal/dto"
	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/pkg/apperrors"
	"telemed-recording-be/internal/pkg/logger"
	"telemed-recording-be/internal/pkg/sessionlock"
	"telemed-recording-be/internal/repository/memory"
	"telemed-recording-be/internal/repository/specification"
	"telemed-recording-be/internal/repository/unitofwork"
	"telemed-recording-be/internal/websocket"
	"telemed-recording-be/pkg/audio"
	"telemed-recording-be/pkg/events"
	pktNats "telemed-recording-be/pkg/nats"

	"github.com/google/uuid"
)

// casRetries bounds reload-and-retry on version conflicts caused by
// writers on other instances; same-instance writers are already
// serialized by the session lock.
const casRetries = 3

type IRecordingService interface {
	StartSession(ctx context.Context, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error)
	Upload(ctx context.Context, req *dto.UploadRecordingRequest) (*dto.UploadRecordingResponse, error)
	MarkSlotFailed(ctx context.Context, sessionId uuid.UUID, role entity.Role) error
	GetStatus(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStatusResponse, error)
	ForceProcess(ctx context.Context, sessionId uuid.UUID) (*dto.ForceProcessResponse, error)
	EndSession(ctx context.Context, sessionId uuid.UUID) (*dto.EndSessionResponse, error)
	RegenerateSummary(ctx context.Context, sessionId uuid.UUID) (*dto.RegenerateSummaryResponse, error)
	GetSummary(ctx context.Context, sessionId uuid.UUID) (*dto.SummaryResponse, error)
	MergedFile(ctx context.Context, sessionId uuid.UUID) (path string, mimeType string, err error)
}

type recordingService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	hub              *websocket.Hub
	statusCache      *memory.StatusCache
	locks            *sessionlock.Locker
	minArtifactBytes int64
	logger           logger.ILogger
}

func NewRecordingService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	hub *websocket.Hub,
	statusCache *memory.StatusCache,
	locks *sessionlock.Locker,
	minArtifactBytes int64,
	log logger.ILogger,
) IRecordingService {
	return &recordingService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		hub:              hub,
		statusCache:      statusCache,
		locks:            locks,
		minArtifactBytes: minArtifactBytes,
		logger:           log,
	}
}

// StartSession finds or creates the session for a meeting. Both parties
// call it independently, so the second caller resumes the first
// caller's session instead of forking a new one.
func (s *recordingService) StartSession(ctx context.Context, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.RecordingSessionRepository().FindOne(ctx,
		specification.ByMeetingID{MeetingID: req.MeetingId},
		specification.ByStatus{Status: entity.SessionAwaitingUploads},
	)
	if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, err
	}
	if existing != nil {
		return &dto.StartSessionResponse{
			SessionId: existing.Id,
			MeetingId: existing.MeetingId,
			Status:    existing.Status,
			Resumed:   true,
		}, nil
	}

	session := &entity.RecordingSession{
		Id:            uuid.New(),
		AppointmentId: req.AppointmentId,
		MeetingId:     req.MeetingId,
		Status:        entity.SessionAwaitingUploads,
		PatientSlot:   entity.ParticipantSlot{Status: entity.SlotPending},
		DoctorSlot:    entity.ParticipantSlot{Status: entity.SlotPending},
		Summary:       entity.Summary{Status: entity.SummaryNotStarted},
		CreatedAt:     time.Now(),
	}

	if err := uow.RecordingSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("RecordingService", "Session started", map[string]interface{}{
		"session_id": session.Id,
		"meeting_id": session.MeetingId,
	})
	s.publishEvent(ctx, events.TypeSessionStarted, session, nil)

	return &dto.StartSessionResponse{
		SessionId: session.Id,
		MeetingId: session.MeetingId,
		Status:    session.Status,
		Resumed:   false,
	}, nil
}

// Upload accepts one party's recording. The artifact is already on
// disk; this validates it, claims the slot (last write wins, so client
// retries are always safe) and triggers processing exactly once when
// the second slot lands while the session is still awaiting uploads.
// Uploads after the pipeline started replace the stored artifact but
// never re-trigger it.
func (s *recordingService) Upload(ctx context.Context, req *dto.UploadRecordingRequest) (*dto.UploadRecordingResponse, error) {
	if err := audio.ValidateArtifact(req.ByteSize, req.MimeType, s.minArtifactBytes); err != nil {
		return nil, err
	}

	key := req.SessionId.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var (
		session   *entity.RecordingSession
		triggered bool
	)
	err := s.withCASRetry(ctx, req.SessionId, func(sess *entity.RecordingSession) error {
		now := time.Now()
		slot := sess.Slot(req.Role)
		slot.Status = entity.SlotUploaded
		slot.Artifact = &entity.ArtifactRef{
			FilePath:        req.FilePath,
			FileName:        req.FileName,
			ByteSize:        req.ByteSize,
			MimeType:        req.MimeType,
			DurationSeconds: int(req.DurationSeconds),
		}
		slot.UploadedAt = &now

		triggered = false
		if sess.Status == entity.SessionAwaitingUploads && sess.BothUploaded() {
			sess.Status = entity.SessionProcessing
			triggered = true
		}
		session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RecordingService", "Slot uploaded", map[string]interface{}{
		"session_id": session.Id,
		"role":       req.Role,
		"bytes":      req.ByteSize,
		"triggered":  triggered,
	})

	s.afterWrite(ctx, session)
	s.publishEvent(ctx, events.TypeSlotUploaded, session, map[string]interface{}{"role": string(req.Role)})

	if triggered {
		if err := s.enqueueProcessing(ctx, session, false); err != nil {
			return nil, err
		}
	}

	return &dto.UploadRecordingResponse{
		SessionId:           session.Id,
		Role:                req.Role,
		Accepted:            true,
		TriggeredProcessing: triggered,
		Status:              session.Status,
	}, nil
}

// MarkSlotFailed records a storage-layer failure for one party's slot.
// The slot stays retryable: a later successful upload overwrites it,
// and force-process still runs with the other party's recording.
func (s *recordingService) MarkSlotFailed(ctx context.Context, sessionId uuid.UUID, role entity.Role) error {
	key := sessionId.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	session, err := mutateSessionCAS(ctx, s.uowFactory, sessionId, func(sess *entity.RecordingSession) error {
		sess.Slot(role).Status = entity.SlotFailed
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Warn("RecordingService", "Slot upload failed", map[string]interface{}{
		"session_id": sessionId,
		"role":       role,
	})
	s.afterWrite(ctx, session)
	return nil
}

func (s *recordingService) GetStatus(ctx context.Context, sessionId uuid.UUID) (*dto.SessionStatusResponse, error) {
	if cached, ok := s.statusCache.Get(sessionId.String()); ok {
		return toStatusResponse(cached), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.RecordingSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}

	s.statusCache.Set(session)
	return toStatusResponse(session), nil
}

// ForceProcess starts the pipeline with whatever recordings exist, for
// calls where one party never managed to upload.
func (s *recordingService) ForceProcess(ctx context.Context, sessionId uuid.UUID) (*dto.ForceProcessResponse, error) {
	key := sessionId.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var session *entity.RecordingSession
	err := s.withCASRetry(ctx, sessionId, func(sess *entity.RecordingSession) error {
		if sess.Status != entity.SessionAwaitingUploads {
			return apperrors.ErrSessionNotIdle
		}
		if sess.UploadedCount() == 0 {
			return apperrors.ErrNoUploadedSlot
		}
		sess.Status = entity.SessionProcessing
		session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RecordingService", "Processing forced", map[string]interface{}{
		"session_id": session.Id,
		"uploaded":   session.UploadedCount(),
	})
	s.afterWrite(ctx, session)

	if err := s.enqueueProcessing(ctx, session, false); err != nil {
		return nil, err
	}

	return &dto.ForceProcessResponse{
		SessionId: session.Id,
		Status:    session.Status,
		Triggered: true,
	}, nil
}

// EndSession records the call's end. If uploads exist and processing
// has not started yet it is triggered now; with zero uploads the
// session is failed outright since nothing can ever be summarized.
func (s *recordingService) EndSession(ctx context.Context, sessionId uuid.UUID) (*dto.EndSessionResponse, error) {
	key := sessionId.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var (
		session   *entity.RecordingSession
		triggered bool
	)
	err := s.withCASRetry(ctx, sessionId, func(sess *entity.RecordingSession) error {
		now := time.Now()
		if sess.EndedAt == nil {
			sess.EndedAt = &now
		}

		triggered = false
		if sess.Status == entity.SessionAwaitingUploads {
			if sess.UploadedCount() > 0 {
				sess.Status = entity.SessionProcessing
				triggered = true
			} else {
				sess.Status = entity.SessionFailed
				sess.ErrorReason = apperrors.ErrNoUploadedSlot.Error()
			}
		}
		session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, session)
	if session.Status == entity.SessionFailed {
		s.publishEvent(ctx, events.TypeSessionFailed, session, map[string]interface{}{"reason": session.ErrorReason})
	}
	if triggered {
		if err := s.enqueueProcessing(ctx, session, false); err != nil {
			return nil, err
		}
	}

	return &dto.EndSessionResponse{
		SessionId: session.Id,
		Status:    session.Status,
		Triggered: triggered,
	}, nil
}

// RegenerateSummary reruns summarization for a finished session. When
// the merged artifact is still on record only the summarization stage
// runs; otherwise the raw slots are merged again first.
func (s *recordingService) RegenerateSummary(ctx context.Context, sessionId uuid.UUID) (*dto.RegenerateSummaryResponse, error) {
	key := sessionId.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	var (
		session    *entity.RecordingSession
		regenerate bool
	)
	err := s.withCASRetry(ctx, sessionId, func(sess *entity.RecordingSession) error {
		switch sess.Status {
		case entity.SessionComplete, entity.SessionFailed:
		default:
			return apperrors.ErrSessionNotIdle
		}

		regenerate = sess.MergedAudio != nil
		if !regenerate && sess.UploadedCount() == 0 {
			return apperrors.ErrSummaryNotReady
		}

		if regenerate {
			sess.Status = entity.SessionSummarizing
		} else {
			sess.Status = entity.SessionProcessing
		}
		sess.Summary.Status = entity.SummaryGenerating
		sess.Summary.ErrorReason = ""
		sess.ErrorReason = ""
		sess.CompletedAt = nil
		session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("RecordingService", "Summary regeneration requested", map[string]interface{}{
		"session_id":  session.Id,
		"merge_reuse": regenerate,
	})
	s.afterWrite(ctx, session)

	if err := s.enqueueProcessing(ctx, session, regenerate); err != nil {
		return nil, err
	}

	return &dto.RegenerateSummaryResponse{
		SessionId: session.Id,
		Status:    session.Status,
	}, nil
}

func (s *recordingService) GetSummary(ctx context.Context, sessionId uuid.UUID) (*dto.SummaryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.RecordingSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	return toSummaryResponse(session), nil
}

func (s *recordingService) MergedFile(ctx context.Context, sessionId uuid.UUID) (string, string, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.RecordingSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return "", "", err
	}
	if session.MergedAudio == nil {
		return "", "", apperrors.ErrSummaryNotReady
	}
	return session.MergedAudio.FilePath, session.MergedAudio.MimeType, nil
}

func (s *recordingService) withCASRetry(ctx context.Context, sessionId uuid.UUID, mutate func(*entity.RecordingSession) error) error {
	_, err := mutateSessionCAS(ctx, s.uowFactory, sessionId, mutate)
	return err
}

// mutateSessionCAS loads the session, applies mutate and persists
// through the version CAS, reloading on conflict.
func mutateSessionCAS(
	ctx context.Context,
	uowFactory unitofwork.RepositoryFactory,
	sessionId uuid.UUID,
	mutate func(*entity.RecordingSession) error,
) (*entity.RecordingSession, error) {
	uow := uowFactory.NewUnitOfWork(ctx)
	repo := uow.RecordingSessionRepository()

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		session, err := repo.FindOne(ctx, specification.ByID{ID: sessionId})
		if err != nil {
			return nil, err
		}

		if err := mutate(session); err != nil {
			return nil, err
		}

		err = repo.UpdateCAS(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *recordingService) enqueueProcessing(ctx context.Context, session *entity.RecordingSession, regenerate bool) error {
	msgPayload := dto.ProcessRecordingMessage{
		SessionId:  session.Id,
		Regenerate: regenerate,
	}
	msgJson, err := json.Marshal(msgPayload)
	if err != nil {
		return err
	}
	if err := s.publisherService.Publish(ctx, msgJson); err != nil {
		return fmt.Errorf("failed to enqueue processing: %w", err)
	}
	s.publishEvent(ctx, events.TypeProcessingStarted, session, map[string]interface{}{"regenerate": regenerate})
	return nil
}

// afterWrite keeps the read paths honest after a successful CAS write.
func (s *recordingService) afterWrite(ctx context.Context, session *entity.RecordingSession) {
	s.statusCache.Invalidate(session.Id.String())
	if s.hub != nil {
		s.hub.SendToSession(session.Id, "recording_status", toStatusResponse(session))
	}
}

// publishEvent forwards a lifecycle event to NATS. Failures are logged,
// never surfaced: the event bus is auxiliary to the pipeline.
func (s *recordingService) publishEvent(ctx context.Context, eventType string, session *entity.RecordingSession, extra map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewSessionEvent(eventType, session.Id.String(), session.MeetingId, extra)
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("RecordingService", "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

func toStatusResponse(session *entity.RecordingSession) *dto.SessionStatusResponse {
	return &dto.SessionStatusResponse{
		SessionId:     session.Id,
		MeetingId:     session.MeetingId,
		AppointmentId: session.AppointmentId,
		Status:        session.Status,
		Patient:       toSlotResponse(&session.PatientSlot),
		Doctor:        toSlotResponse(&session.DoctorSlot),
		SummaryStatus: session.Summary.Status,
		ErrorReason:   session.ErrorReason,
		CreatedAt:     session.CreatedAt,
		EndedAt:       session.EndedAt,
		CompletedAt:   session.CompletedAt,
	}
}

func toSlotResponse(slot *entity.ParticipantSlot) dto.SlotStatusResponse {
	res := dto.SlotStatusResponse{
		Status:     slot.Status,
		UploadedAt: slot.UploadedAt,
	}
	if slot.Artifact != nil {
		res.FileName = slot.Artifact.FileName
		res.ByteSize = slot.Artifact.ByteSize
		res.MimeType = slot.Artifact.MimeType
		res.DurationSeconds = float64(slot.Artifact.DurationSeconds)
	}
	return res
}

func toSummaryResponse(session *entity.RecordingSession) *dto.SummaryResponse {
	res := &dto.SummaryResponse{
		SessionId:            session.Id,
		Status:               session.Summary.Status,
		Content:              session.Summary.Content,
		KeyPoints:            session.Summary.KeyPoints,
		FollowUpInstructions: session.Summary.FollowUpInstructions,
		Partial:              session.Summary.Partial,
		GeneratedAt:          session.Summary.GeneratedAt,
		ErrorReason:          session.Summary.ErrorReason,
	}
	for _, med := range session.Summary.Medications {
		res.Medications = append(res.Medications, dto.MedicationResponse{
			Name:         med.Name,
			Dosage:       med.Dosage,
			Instructions: med.Instructions,
		})
	}
	return res
}
