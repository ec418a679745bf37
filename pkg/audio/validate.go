package audio

import (
	"strings"

	"telemed-recording-be/internal/pkg/apperrors"
)

// ValidateArtifact applies the shared acceptance rules for a captured
// recording: it must carry audio bytes above the minimum size and an
// audio/* content type. Tiny blobs are what a muted or instantly
// stopped recorder produces, so they are rejected rather than merged.
func ValidateArtifact(byteSize int64, mimeType string, minBytes int64) error {
	if byteSize == 0 {
		return apperrors.ErrNoAudioCaptured
	}
	if byteSize < minBytes {
		return apperrors.ErrRecordingTooShort
	}
	if !IsAudioMime(mimeType) {
		return apperrors.ErrInvalidArtifactType
	}
	return nil
}

func IsAudioMime(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(mt, "audio/")
}
