package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecordingSlot is embedded twice (patient_/doctor_ prefixes) plus once more
// for the merged artifact columns.
type RecordingSlot struct {
	Status          string `gorm:"type:varchar(20);not null;default:'PENDING'"`
	FilePath        string `gorm:"type:varchar(500)"`
	FileName        string `gorm:"type:varchar(255)"`
	ByteSize        int64  `gorm:"type:bigint;default:0"`
	MimeType        string `gorm:"type:varchar(100)"`
	DurationSeconds int    `gorm:"type:integer;default:0"`
	UploadedAt      *time.Time
}

type RecordingSession struct {
	Id            uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AppointmentId string        `gorm:"type:varchar(100);index"`
	MeetingId     string        `gorm:"type:varchar(100);not null;index"`
	Status        string        `gorm:"type:varchar(20);not null;index;default:'AWAITING_UPLOADS'"`
	PatientSlot   RecordingSlot `gorm:"embedded;embeddedPrefix:patient_"`
	DoctorSlot    RecordingSlot `gorm:"embedded;embeddedPrefix:doctor_"`

	MergedFilePath        string `gorm:"type:varchar(500)"`
	MergedFileName        string `gorm:"type:varchar(255)"`
	MergedByteSize        int64  `gorm:"type:bigint;default:0"`
	MergedMimeType        string `gorm:"type:varchar(100)"`
	MergedDurationSeconds int    `gorm:"type:integer;default:0"`
	MergedAt              *time.Time

	SummaryStatus               string         `gorm:"type:varchar(20);not null;default:'NOT_STARTED'"`
	SummaryContent              string         `gorm:"type:text"`
	SummaryKeyPoints            datatypes.JSON `gorm:"type:jsonb"`
	SummaryMedications          datatypes.JSON `gorm:"type:jsonb"`
	SummaryFollowUpInstructions string         `gorm:"type:text"`
	SummaryPartial              bool           `gorm:"not null;default:false"`
	SummaryGeneratedAt          *time.Time
	SummaryErrorReason          string `gorm:"type:text"`

	ErrorReason string    `gorm:"type:text"`
	Version     int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	EndedAt     *time.Time
	CompletedAt *time.Time
}

func (RecordingSession) TableName() string {
	return "recording_sessions"
}
