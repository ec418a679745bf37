package specification

import (
	"telemed-recording-be/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

type ByMeetingID struct {
	MeetingID string
}

func (s ByMeetingID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("meeting_id = ?", s.MeetingID)
}

type ByStatus struct {
	Status entity.SessionStatus
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

type ByAppointmentID struct {
	AppointmentID string
}

func (s ByAppointmentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("appointment_id = ?", s.AppointmentID)
}

type OrderByCreatedDesc struct{}

func (s OrderByCreatedDesc) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}
