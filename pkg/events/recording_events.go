package events

import "time"

const (
	TypeSessionStarted      = "RECORDING_SESSION_STARTED"
	TypeSlotUploaded        = "RECORDING_SLOT_UPLOADED"
	TypeProcessingStarted   = "RECORDING_PROCESSING_STARTED"
	TypeMergeComplete       = "RECORDING_MERGE_COMPLETE"
	TypeSummaryReady        = "RECORDING_SUMMARY_READY"
	TypeSessionComplete     = "RECORDING_SESSION_COMPLETE"
	TypeSessionFailed       = "RECORDING_SESSION_FAILED"
	TypeSessionStatusChange = "RECORDING_STATUS_CHANGE"
)

func NewSessionEvent(eventType, sessionId, meetingId string, extra map[string]interface{}) Event {
	data := map[string]interface{}{
		"session_id": sessionId,
		"meeting_id": meetingId,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
