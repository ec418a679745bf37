package entity

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionAwaitingUploads SessionStatus = "AWAITING_UPLOADS"
	SessionProcessing      SessionStatus = "PROCESSING"
	SessionSummarizing     SessionStatus = "SUMMARIZING"
	SessionComplete        SessionStatus = "COMPLETE"
	SessionFailed          SessionStatus = "FAILED"
)

type SlotStatus string

const (
	SlotPending  SlotStatus = "PENDING"
	SlotUploaded SlotStatus = "UPLOADED"
	SlotFailed   SlotStatus = "FAILED"
)

type SummaryStatus string

const (
	SummaryNotStarted SummaryStatus = "NOT_STARTED"
	SummaryGenerating SummaryStatus = "GENERATING"
	SummaryReady      SummaryStatus = "READY"
	SummaryFailed     SummaryStatus = "FAILED"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ArtifactRef points at a stored audio blob plus the metadata needed to
// reconstruct it (the negotiated mime type travels with the file).
type ArtifactRef struct {
	FilePath        string
	FileName        string
	ByteSize        int64
	MimeType        string
	DurationSeconds int
}

type ParticipantSlot struct {
	Status     SlotStatus
	Artifact   *ArtifactRef
	UploadedAt *time.Time
}

type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type Summary struct {
	Status               SummaryStatus
	Content              string
	KeyPoints            []string
	Medications          []Medication
	FollowUpInstructions string
	Partial              bool
	GeneratedAt          *time.Time
	ErrorReason          string
}

// RecordingSession is the authoritative record for one call attempt.
// All mutations go through the repository's version CAS; Version is the
// fencing token.
type RecordingSession struct {
	Id            uuid.UUID
	AppointmentId string
	MeetingId     string
	Status        SessionStatus
	PatientSlot   ParticipantSlot
	DoctorSlot    ParticipantSlot
	MergedAudio   *ArtifactRef
	MergedAt      *time.Time
	Summary       Summary
	ErrorReason   string
	Version       int64
	CreatedAt     time.Time
	EndedAt       *time.Time
	CompletedAt   *time.Time
}

func (s *RecordingSession) Slot(role Role) *ParticipantSlot {
	if role == RoleDoctor {
		return &s.DoctorSlot
	}
	return &s.PatientSlot
}

func (s *RecordingSession) BothUploaded() bool {
	return s.PatientSlot.Status == SlotUploaded && s.DoctorSlot.Status == SlotUploaded
}

func (s *RecordingSession) UploadedCount() int {
	n := 0
	if s.PatientSlot.Status == SlotUploaded {
		n++
	}
	if s.DoctorSlot.Status == SlotUploaded {
		n++
	}
	return n
}
