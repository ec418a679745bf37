package mapper

import (
	"encoding/json"

	"telemed-recording-be/internal/entity"
	"telemed-recording-be/internal/model"

	"gorm.io/datatypes"
)

type RecordingSessionMapper struct{}

func NewRecordingSessionMapper() *RecordingSessionMapper {
	return &RecordingSessionMapper{}
}

func (m *RecordingSessionMapper) ToEntity(s *model.RecordingSession) *entity.RecordingSession {
	if s == nil {
		return nil
	}

	var keyPoints []string
	if len(s.SummaryKeyPoints) > 0 {
		_ = json.Unmarshal(s.SummaryKeyPoints, &keyPoints)
	}
	var medications []entity.Medication
	if len(s.SummaryMedications) > 0 {
		_ = json.Unmarshal(s.SummaryMedications, &medications)
	}

	return &entity.RecordingSession{
		Id:            s.Id,
		AppointmentId: s.AppointmentId,
		MeetingId:     s.MeetingId,
		Status:        entity.SessionStatus(s.Status),
		PatientSlot:   slotToEntity(s.PatientSlot),
		DoctorSlot:    slotToEntity(s.DoctorSlot),
		MergedAudio: artifactFromColumns(
			s.MergedFilePath, s.MergedFileName, s.MergedByteSize, s.MergedMimeType, s.MergedDurationSeconds,
		),
		MergedAt: s.MergedAt,
		Summary: entity.Summary{
			Status:               entity.SummaryStatus(s.SummaryStatus),
			Content:              s.SummaryContent,
			KeyPoints:            keyPoints,
			Medications:          medications,
			FollowUpInstructions: s.SummaryFollowUpInstructions,
			Partial:              s.SummaryPartial,
			GeneratedAt:          s.SummaryGeneratedAt,
			ErrorReason:          s.SummaryErrorReason,
		},
		ErrorReason: s.ErrorReason,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		EndedAt:     s.EndedAt,
		CompletedAt: s.CompletedAt,
	}
}

func (m *RecordingSessionMapper) ToModel(s *entity.RecordingSession) *model.RecordingSession {
	if s == nil {
		return nil
	}

	keyPoints, _ := json.Marshal(s.Summary.KeyPoints)
	medications, _ := json.Marshal(s.Summary.Medications)

	out := &model.RecordingSession{
		Id:            s.Id,
		AppointmentId: s.AppointmentId,
		MeetingId:     s.MeetingId,
		Status:        string(s.Status),
		PatientSlot:   slotToModel(s.PatientSlot),
		DoctorSlot:    slotToModel(s.DoctorSlot),

		SummaryStatus:               string(s.Summary.Status),
		SummaryContent:              s.Summary.Content,
		SummaryKeyPoints:            datatypes.JSON(keyPoints),
		SummaryMedications:          datatypes.JSON(medications),
		SummaryFollowUpInstructions: s.Summary.FollowUpInstructions,
		SummaryPartial:              s.Summary.Partial,
		SummaryGeneratedAt:          s.Summary.GeneratedAt,
		SummaryErrorReason:          s.Summary.ErrorReason,

		ErrorReason: s.ErrorReason,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		EndedAt:     s.EndedAt,
		CompletedAt: s.CompletedAt,
		MergedAt:    s.MergedAt,
	}

	if s.MergedAudio != nil {
		out.MergedFilePath = s.MergedAudio.FilePath
		out.MergedFileName = s.MergedAudio.FileName
		out.MergedByteSize = s.MergedAudio.ByteSize
		out.MergedMimeType = s.MergedAudio.MimeType
		out.MergedDurationSeconds = s.MergedAudio.DurationSeconds
	}

	return out
}

func (m *RecordingSessionMapper) ToEntities(sessions []*model.RecordingSession) []*entity.RecordingSession {
	entities := make([]*entity.RecordingSession, len(sessions))
	for i, s := range sessions {
		entities[i] = m.ToEntity(s)
	}
	return entities
}

func slotToEntity(s model.RecordingSlot) entity.ParticipantSlot {
	return entity.ParticipantSlot{
		Status:     entity.SlotStatus(s.Status),
		Artifact:   artifactFromColumns(s.FilePath, s.FileName, s.ByteSize, s.MimeType, s.DurationSeconds),
		UploadedAt: s.UploadedAt,
	}
}

func slotToModel(s entity.ParticipantSlot) model.RecordingSlot {
	out := model.RecordingSlot{
		Status:     string(s.Status),
		UploadedAt: s.UploadedAt,
	}
	if s.Artifact != nil {
		out.FilePath = s.Artifact.FilePath
		out.FileName = s.Artifact.FileName
		out.ByteSize = s.Artifact.ByteSize
		out.MimeType = s.Artifact.MimeType
		out.DurationSeconds = s.Artifact.DurationSeconds
	}
	return out
}

func artifactFromColumns(path, name string, size int64, mime string, duration int) *entity.ArtifactRef {
	if path == "" {
		return nil
	}
	return &entity.ArtifactRef{
		FilePath:        path,
		FileName:        name,
		ByteSize:        size,
		MimeType:        mime,
		DurationSeconds: duration,
	}
}
