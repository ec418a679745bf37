package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"telemed-recording-be/internal/dto"
	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/pkg/apperrors"
	"telemed-recording-be/internal/pkg/logger"
	"telemed-recording-be/internal/pkg/mailer"
	"telemed-recording-be/internal/repository/memory"
	"telemed-recording-be/internal/repository/specification"
	"telemed-recording-be/internal/repository/unitofwork"
	"telemed-recording-be/internal/websocket"
	"telemed-recording-be/pkg/audio"
	"telemed-recording-be/pkg/events"
	pktNats "telemed-recording-be/pkg/nats"
	"telemed-recording-be/pkg/storage"
	"telemed-recording-be/pkg/summarizer"

	"github.com/google/uuid"
)

type IProcessingService interface {
	Process(ctx context.Context, msg dto.ProcessRecordingMessage) error
}

type processingService struct {
	uowFactory     unitofwork.RepositoryFactory
	store          *storage.LocalStore
	ffmpegMerger   *audio.FFmpegMerger
	fallbackMerger audio.Merger
	provider       summarizer.Provider
	emailService   mailer.IEmailService
	eventPublisher *pktNats.Publisher
	hub            *websocket.Hub
	statusCache    *memory.StatusCache
	summaryTimeout time.Duration
	notifyEmail    string
	logger         logger.ILogger
}

func NewProcessingService(
	uowFactory unitofwork.RepositoryFactory,
	store *storage.LocalStore,
	ffmpegMerger *audio.FFmpegMerger,
	fallbackMerger audio.Merger,
	provider summarizer.Provider,
	emailService mailer.IEmailService,
	eventPublisher *pktNats.Publisher,
	hub *websocket.Hub,
	statusCache *memory.StatusCache,
	summaryTimeout time.Duration,
	notifyEmail string,
	log logger.ILogger,
) IProcessingService {
	return &processingService{
		uowFactory:     uowFactory,
		store:          store,
		ffmpegMerger:   ffmpegMerger,
		fallbackMerger: fallbackMerger,
		provider:       provider,
		emailService:   emailService,
		eventPublisher: eventPublisher,
		hub:            hub,
		statusCache:    statusCache,
		summaryTimeout: summaryTimeout,
		notifyEmail:    notifyEmail,
		logger:         log,
	}
}

// Process runs the merge and summarization pipeline for one session.
// A returned error means the message should be retried; terminal
// failures are written to the session and return nil.
func (p *processingService) Process(ctx context.Context, msg dto.ProcessRecordingMessage) error {
	uow := p.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.RecordingSessionRepository().FindOne(ctx, specification.ByID{ID: msg.SessionId})
	if err != nil {
		p.logger.Error("ProcessingService", "Session lookup failed", map[string]interface{}{
			"session_id": msg.SessionId,
			"error":      err.Error(),
		})
		return err
	}

	switch session.Status {
	case entity.SessionProcessing:
		return p.runFull(ctx, session)
	case entity.SessionSummarizing:
		// Regenerate path: merged artifact is reused.
		if session.MergedAudio == nil || !p.store.Exists(session.MergedAudio.FilePath) {
			return p.runFull(ctx, session)
		}
		return p.runSummarization(ctx, session)
	default:
		// Stale or duplicate message; nothing to do.
		p.logger.Warn("ProcessingService", "Skipping message for session not in pipeline state", map[string]interface{}{
			"session_id": session.Id,
			"status":     session.Status,
		})
		return nil
	}
}

func (p *processingService) runFull(ctx context.Context, session *entity.RecordingSession) error {
	inputs := p.mergeInputs(session)
	if len(inputs) == 0 {
		return p.failSession(ctx, session.Id, apperrors.ErrNoUploadedSlot.Error())
	}
	partial := len(inputs) < 2

	mergedRef, err := p.merge(ctx, session, inputs)
	if err != nil {
		p.logger.Error("ProcessingService", "Merge failed", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
		return p.failSession(ctx, session.Id, fmt.Sprintf("merge: %v", err))
	}

	now := time.Now()
	updated, err := mutateSessionCAS(ctx, p.uowFactory, session.Id, func(sess *entity.RecordingSession) error {
		sess.MergedAudio = mergedRef
		sess.MergedAt = &now
		sess.Status = entity.SessionSummarizing
		sess.Summary.Status = entity.SummaryGenerating
		sess.Summary.Partial = partial
		return nil
	})
	if err != nil {
		return err
	}
	p.afterWrite(updated)
	p.publishEvent(ctx, events.TypeMergeComplete, updated, map[string]interface{}{
		"partial": partial,
		"bytes":   mergedRef.ByteSize,
	})

	return p.runSummarization(ctx, updated)
}

func (p *processingService) runSummarization(ctx context.Context, session *entity.RecordingSession) error {
	merged := session.MergedAudio

	sumCtx, cancel := context.WithTimeout(ctx, p.summaryTimeout)
	defer cancel()

	result, err := p.provider.Summarize(sumCtx, merged.FilePath, merged.MimeType, summarizer.SourceInfo{
		MeetingId:       session.MeetingId,
		DurationSeconds: float64(merged.DurationSeconds),
		Partial:         session.Summary.Partial,
	})
	if err != nil {
		p.logger.Error("ProcessingService", "Summarization failed", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
		return p.failSummary(ctx, session.Id, err.Error())
	}

	now := time.Now()
	updated, casErr := mutateSessionCAS(ctx, p.uowFactory, session.Id, func(sess *entity.RecordingSession) error {
		sess.Summary.Status = entity.SummaryReady
		sess.Summary.Content = result.Content
		sess.Summary.KeyPoints = result.KeyPoints
		sess.Summary.Medications = toEntityMedications(result.Medications)
		sess.Summary.FollowUpInstructions = result.FollowUpInstructions
		sess.Summary.GeneratedAt = &now
		sess.Summary.ErrorReason = ""
		sess.Status = entity.SessionComplete
		sess.CompletedAt = &now
		sess.ErrorReason = ""
		return nil
	})
	if casErr != nil {
		return casErr
	}

	p.logger.Info("ProcessingService", "Session complete", map[string]interface{}{
		"session_id": updated.Id,
		"partial":    updated.Summary.Partial,
	})
	p.afterWrite(updated)
	p.publishEvent(ctx, events.TypeSummaryReady, updated, nil)
	p.publishEvent(ctx, events.TypeSessionComplete, updated, nil)

	if p.emailService != nil && p.notifyEmail != "" {
		if err := p.emailService.SendSummaryReady(p.notifyEmail, updated.MeetingId, updated.Id.String()); err != nil {
			p.logger.Warn("ProcessingService", "Summary notification mail failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// merge mixes the available tracks, preferring ffmpeg and falling back
// to promoting a single track when ffmpeg is missing or fails.
func (p *processingService) merge(ctx context.Context, session *entity.RecordingSession, inputs []audio.MergeInput) (*entity.ArtifactRef, error) {
	var (
		outputPath string
		mimeType   string
	)

	useFFmpeg := p.ffmpegMerger != nil && p.ffmpegMerger.Available() && len(inputs) > 1
	if useFFmpeg {
		outputPath = p.store.MergedPath(session.Id.String(), ".webm")
		mimeType = "audio/webm"
		if err := p.ffmpegMerger.Merge(ctx, inputs, outputPath); err != nil {
			p.logger.Warn("ProcessingService", "ffmpeg merge failed, using fallback", map[string]interface{}{
				"session_id": session.Id,
				"error":      err.Error(),
			})
			useFFmpeg = false
		}
	}

	if !useFFmpeg {
		chosen := chooseFallbackInput(inputs)
		outputPath = p.store.MergedPath(session.Id.String(), filepath.Ext(chosen.Path))
		mimeType = chosen.MimeType
		if err := p.fallbackMerger.Merge(ctx, []audio.MergeInput{chosen}, outputPath); err != nil {
			return nil, err
		}
	}

	size, err := p.store.Size(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat output: %v", apperrors.ErrMergeFailed, err)
	}

	duration := 0
	for _, in := range inputs {
		if int(in.DurationSeconds) > duration {
			duration = int(in.DurationSeconds)
		}
	}

	return &entity.ArtifactRef{
		FilePath:        outputPath,
		FileName:        filepath.Base(outputPath),
		ByteSize:        size,
		MimeType:        mimeType,
		DurationSeconds: duration,
	}, nil
}

func (p *processingService) mergeInputs(session *entity.RecordingSession) []audio.MergeInput {
	var inputs []audio.MergeInput
	for _, pair := range []struct {
		role entity.Role
		slot *entity.ParticipantSlot
	}{
		{entity.RolePatient, &session.PatientSlot},
		{entity.RoleDoctor, &session.DoctorSlot},
	} {
		if pair.slot.Status != entity.SlotUploaded || pair.slot.Artifact == nil {
			continue
		}
		if !p.store.Exists(pair.slot.Artifact.FilePath) {
			p.logger.Warn("ProcessingService", "Uploaded artifact missing from disk", map[string]interface{}{
				"session_id": session.Id,
				"role":       pair.role,
				"path":       pair.slot.Artifact.FilePath,
			})
			continue
		}
		inputs = append(inputs, audio.MergeInput{
			Path:            pair.slot.Artifact.FilePath,
			Role:            string(pair.role),
			MimeType:        pair.slot.Artifact.MimeType,
			ByteSize:        pair.slot.Artifact.ByteSize,
			DurationSeconds: float64(pair.slot.Artifact.DurationSeconds),
		})
	}
	return inputs
}

// failSession marks a terminal pipeline failure. Raw uploads are kept
// so the session can be reprocessed later.
func (p *processingService) failSession(ctx context.Context, sessionId uuid.UUID, reason string) error {
	updated, err := mutateSessionCAS(ctx, p.uowFactory, sessionId, func(sess *entity.RecordingSession) error {
		sess.Status = entity.SessionFailed
		sess.ErrorReason = reason
		if sess.Summary.Status == entity.SummaryGenerating {
			sess.Summary.Status = entity.SummaryFailed
			sess.Summary.ErrorReason = reason
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.afterWrite(updated)
	p.publishEvent(ctx, events.TypeSessionFailed, updated, map[string]interface{}{"reason": reason})
	p.notifyFailure(updated, reason)
	return nil
}

func (p *processingService) failSummary(ctx context.Context, sessionId uuid.UUID, reason string) error {
	updated, err := mutateSessionCAS(ctx, p.uowFactory, sessionId, func(sess *entity.RecordingSession) error {
		sess.Summary.Status = entity.SummaryFailed
		sess.Summary.ErrorReason = reason
		sess.Status = entity.SessionFailed
		sess.ErrorReason = reason
		return nil
	})
	if err != nil {
		return err
	}
	p.afterWrite(updated)
	p.publishEvent(ctx, events.TypeSessionFailed, updated, map[string]interface{}{"reason": reason})
	p.notifyFailure(updated, reason)
	return nil
}

func (p *processingService) notifyFailure(session *entity.RecordingSession, reason string) {
	if p.emailService == nil || p.notifyEmail == "" {
		return
	}
	if err := p.emailService.SendProcessingFailed(p.notifyEmail, session.MeetingId, reason); err != nil {
		p.logger.Warn("ProcessingService", "Failure notification mail failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (p *processingService) afterWrite(session *entity.RecordingSession) {
	p.statusCache.Invalidate(session.Id.String())
	if p.hub != nil {
		p.hub.SendToSession(session.Id, "recording_status", toStatusResponse(session))
	}
}

func (p *processingService) publishEvent(ctx context.Context, eventType string, session *entity.RecordingSession, extra map[string]interface{}) {
	if p.eventPublisher == nil {
		return
	}
	evt := events.NewSessionEvent(eventType, session.Id.String(), session.MeetingId, extra)
	if err := p.eventPublisher.Publish(ctx, evt); err != nil {
		p.logger.Warn("ProcessingService", "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

func chooseFallbackInput(inputs []audio.MergeInput) audio.MergeInput {
	chosen := inputs[0]
	for _, in := range inputs {
		if in.Role == string(entity.RolePatient) {
			return in
		}
	}
	return chosen
}

func toEntityMedications(meds []summarizer.Medication) []entity.Medication {
	out := make([]entity.Medication, 0, len(meds))
	for _, m := range meds {
		out = append(out, entity.Medication{
			Name:         m.Name,
			Dosage:       m.Dosage,
			Instructions: m.Instructions,
		})
	}
	return out
}
