package apperrors

import "errors"

// Transport errors (Upload Gateway).
var (
	ErrSessionNotFound  = errors.New("recording session not found")
	ErrSlotUploadFailed = errors.New("slot upload failed")
)

// Server-side artifact validation. The gateway re-runs the client-side
// checks because the server must not trust the capture engine.
var (
	ErrNoAudioCaptured     = errors.New("no audio data captured")
	ErrRecordingTooShort   = errors.New("recording file is too small (less than 1KB)")
	ErrInvalidArtifactType = errors.New("invalid file type, only audio files are allowed")
)

// Pipeline errors (Processing & Summarization).
var (
	ErrMergeFailed          = errors.New("audio merge failed")
	ErrSummarizationTimeout = errors.New("summarization timed out")
	ErrSummaryParseError    = errors.New("summarizer returned malformed output")
)

// State machine guards.
var (
	ErrNoUploadedSlot  = errors.New("no recordings available to process")
	ErrSessionNotIdle  = errors.New("session already left awaiting-uploads state")
	ErrSummaryNotReady = errors.New("session has no reusable merged artifact")
	ErrVersionConflict = errors.New("session was modified concurrently")
)
