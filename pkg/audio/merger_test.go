package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"telemed-recording-be/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 253)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateArtifact(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		mimeType string
		wantErr  error
	}{
		{"valid opus webm", 50 * 1024, "audio/webm;codecs=opus", nil},
		{"valid wav", 2048, "audio/wav", nil},
		{"empty blob", 0, "audio/webm", apperrors.ErrNoAudioCaptured},
		{"below minimum", 999, "audio/webm", apperrors.ErrRecordingTooShort},
		{"exactly minimum", 1000, "audio/webm", nil},
		{"video mime", 50 * 1024, "video/webm", apperrors.ErrInvalidArtifactType},
		{"no mime", 50 * 1024, "", apperrors.ErrInvalidArtifactType},
		{"mixed case mime", 50 * 1024, "Audio/WEBM", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateArtifact(tc.size, tc.mimeType, 1000)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCopyMergerPrefersPatientTrack(t *testing.T) {
	dir := t.TempDir()
	patientPath := writeArtifact(t, dir, "patient.webm", 4096)
	doctorPath := writeArtifact(t, dir, "doctor.webm", 8192)
	outputPath := filepath.Join(dir, "merged.webm")

	merger := NewCopyMerger()
	err := merger.Merge(context.Background(), []MergeInput{
		{Path: doctorPath, Role: "doctor", ByteSize: 8192},
		{Path: patientPath, Role: "patient", ByteSize: 4096},
	}, outputPath)
	require.NoError(t, err)

	merged, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	original, err := os.ReadFile(patientPath)
	require.NoError(t, err)
	assert.Equal(t, original, merged)
}

func TestCopyMergerSingleInput(t *testing.T) {
	dir := t.TempDir()
	doctorPath := writeArtifact(t, dir, "doctor.webm", 4096)
	outputPath := filepath.Join(dir, "merged.webm")

	merger := NewCopyMerger()
	err := merger.Merge(context.Background(), []MergeInput{
		{Path: doctorPath, Role: "doctor", ByteSize: 4096},
	}, outputPath)
	require.NoError(t, err)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}

func TestCopyMergerNoInputs(t *testing.T) {
	merger := NewCopyMerger()
	err := merger.Merge(context.Background(), nil, filepath.Join(t.TempDir(), "merged.webm"))
	assert.ErrorIs(t, err, apperrors.ErrNoUploadedSlot)
}

func TestCopyMergerMissingSource(t *testing.T) {
	dir := t.TempDir()
	merger := NewCopyMerger()
	err := merger.Merge(context.Background(), []MergeInput{
		{Path: filepath.Join(dir, "missing.webm"), Role: "patient"},
	}, filepath.Join(dir, "merged.webm"))
	assert.ErrorIs(t, err, apperrors.ErrMergeFailed)
}

func TestFFmpegMergerSingleInputCopies(t *testing.T) {
	dir := t.TempDir()
	patientPath := writeArtifact(t, dir, "patient.webm", 4096)
	outputPath := filepath.Join(dir, "merged.webm")

	// One input never shells out, so this path works without ffmpeg.
	merger := NewFFmpegMerger("")
	err := merger.Merge(context.Background(), []MergeInput{
		{Path: patientPath, Role: "patient", ByteSize: 4096},
	}, outputPath)
	require.NoError(t, err)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}
