package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"telemed-recording-be/internal/pkg/apperrors"
)

// MergeInput is one party's artifact handed to a merger.
type MergeInput struct {
	Path            string
	Role            string
	MimeType        string
	ByteSize        int64
	DurationSeconds float64
}

// Merger combines the available per-party tracks into a single file at
// outputPath. With two inputs the tracks are mixed; with one input the
// single track is promoted as-is.
type Merger interface {
	Merge(ctx context.Context, inputs []MergeInput, outputPath string) error
}

// FFmpegMerger shells out to ffmpeg and mixes both tracks into one
// stream, padding the shorter track to the longer one.
type FFmpegMerger struct {
	BinPath string
}

func NewFFmpegMerger(binPath string) *FFmpegMerger {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegMerger{BinPath: binPath}
}

// Available reports whether the ffmpeg binary can be resolved.
func (m *FFmpegMerger) Available() bool {
	_, err := exec.LookPath(m.BinPath)
	return err == nil
}

func (m *FFmpegMerger) Merge(ctx context.Context, inputs []MergeInput, outputPath string) error {
	if len(inputs) == 0 {
		return apperrors.ErrNoUploadedSlot
	}
	if len(inputs) == 1 {
		return copyFile(inputs[0].Path, outputPath)
	}

	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in.Path)
	}
	args = append(args,
		"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=longest:dropout_transition=0[a]",
		"-map", "[a]",
		"-c:a", "libopus",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, m.BinPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: ffmpeg: %v: %s", apperrors.ErrMergeFailed, err, truncate(out, 512))
	}
	return nil
}

// CopyMerger is the no-ffmpeg fallback: it promotes a single track to
// the merged slot. With two tracks it keeps the patient's, since that
// side carries the consultation context the summarizer needs most.
type CopyMerger struct{}

func NewCopyMerger() *CopyMerger {
	return &CopyMerger{}
}

func (m *CopyMerger) Merge(ctx context.Context, inputs []MergeInput, outputPath string) error {
	if len(inputs) == 0 {
		return apperrors.ErrNoUploadedSlot
	}
	chosen := inputs[0]
	for _, in := range inputs {
		if in.Role == "patient" {
			chosen = in
			break
		}
	}
	return copyFile(chosen.Path, outputPath)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: read source: %v", apperrors.ErrMergeFailed, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("%w: write output: %v", apperrors.ErrMergeFailed, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
