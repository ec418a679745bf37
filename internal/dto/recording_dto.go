package dto

import (
	"time"

	"telemed-recording-be/internal/entity"

	"github.com/google/uuid"
)

// ProcessRecordingMessage is the queue payload that hands a session to
// the background pipeline. Regenerate skips the merge when a usable
// merged artifact already exists.
type ProcessRecordingMessage struct {
	SessionId  uuid.UUID `json:"session_id"`
	Regenerate bool      `json:"regenerate"`
}

type StartSessionRequest struct {
	MeetingId     string `json:"meeting_id" validate:"required"`
	AppointmentId string `json:"appointment_id"`
}

type StartSessionResponse struct {
	SessionId uuid.UUID            `json:"session_id"`
	MeetingId string               `json:"meeting_id"`
	Status    entity.SessionStatus `json:"status"`
	Resumed   bool                 `json:"resumed"`
}

// UploadRecordingRequest carries what the multipart handler extracted.
// The audio bytes themselves are streamed to disk before the service runs.
type UploadRecordingRequest struct {
	SessionId       uuid.UUID
	Role            entity.Role
	FileName        string
	MimeType        string
	ByteSize        int64
	DurationSeconds float64
	FilePath        string
}

type UploadRecordingResponse struct {
	SessionId           uuid.UUID            `json:"session_id"`
	Role                entity.Role          `json:"role"`
	Accepted            bool                 `json:"accepted"`
	TriggeredProcessing bool                 `json:"triggered_processing"`
	Status              entity.SessionStatus `json:"status"`
}

type SlotStatusResponse struct {
	Status          entity.SlotStatus `json:"status"`
	FileName        string            `json:"file_name,omitempty"`
	ByteSize        int64             `json:"byte_size,omitempty"`
	MimeType        string            `json:"mime_type,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	UploadedAt      *time.Time        `json:"uploaded_at,omitempty"`
}

type SessionStatusResponse struct {
	SessionId     uuid.UUID            `json:"session_id"`
	MeetingId     string               `json:"meeting_id"`
	AppointmentId string               `json:"appointment_id,omitempty"`
	Status        entity.SessionStatus `json:"status"`
	Patient       SlotStatusResponse   `json:"patient"`
	Doctor        SlotStatusResponse   `json:"doctor"`
	SummaryStatus entity.SummaryStatus `json:"summary_status"`
	ErrorReason   string               `json:"error_reason,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	EndedAt       *time.Time           `json:"ended_at,omitempty"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

type MedicationResponse struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

type SummaryResponse struct {
	SessionId            uuid.UUID            `json:"session_id"`
	Status               entity.SummaryStatus `json:"status"`
	Content              string               `json:"content,omitempty"`
	KeyPoints            []string             `json:"key_points,omitempty"`
	Medications          []MedicationResponse `json:"medications,omitempty"`
	FollowUpInstructions string               `json:"follow_up_instructions,omitempty"`
	Partial              bool                 `json:"partial"`
	GeneratedAt          *time.Time           `json:"generated_at,omitempty"`
	ErrorReason          string               `json:"error_reason,omitempty"`
}

type ForceProcessResponse struct {
	SessionId uuid.UUID            `json:"session_id"`
	Status    entity.SessionStatus `json:"status"`
	Triggered bool                 `json:"triggered"`
}

type EndSessionResponse struct {
	SessionId uuid.UUID            `json:"session_id"`
	Status    entity.SessionStatus `json:"status"`
	Triggered bool                 `json:"triggered"`
}

type RegenerateSummaryResponse struct {
	SessionId uuid.UUID            `json:"session_id"`
	Status    entity.SessionStatus `json:"status"`
}
