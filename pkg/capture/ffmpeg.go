package capture

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
)

// FFmpegDevice opens a microphone through ffmpeg's capture inputs
// (pulse on Linux, avfoundation on macOS). It is the headless-host
// counterpart of a browser getUserMedia call.
type FFmpegDevice struct {
	BinPath    string
	InputFlag  string // e.g. "pulse" or "avfoundation"
	InputName  string // e.g. "default"
	SampleRate int
}

func NewFFmpegDevice(binPath, inputFlag, inputName string) *FFmpegDevice {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	if inputFlag == "" {
		inputFlag = "pulse"
	}
	if inputName == "" {
		inputName = "default"
	}
	return &FFmpegDevice{BinPath: binPath, InputFlag: inputFlag, InputName: inputName, SampleRate: 48000}
}

type ffmpegStream struct {
	device *FFmpegDevice
	track  *ffmpegTrack
}

func (s *ffmpegStream) Tracks() []Track {
	return []Track{s.track}
}

type ffmpegTrack struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func (t *ffmpegTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.cancel != nil {
		t.cancel()
	}
}

func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	if _, err := exec.LookPath(d.BinPath); err != nil {
		return nil, ErrCaptureUnsupported
	}

	// Probe the input once so missing or busy microphones surface at
	// Open time rather than mid-recording.
	probeCtx, cancel := context.WithCancel(ctx)
	probe := exec.CommandContext(probeCtx, d.BinPath,
		"-f", d.InputFlag, "-i", d.InputName, "-t", "0.1", "-f", "null", "-")
	out, err := probe.CombinedOutput()
	cancel()
	if err != nil && probeCtx.Err() == nil {
		msg := strings.ToLower(string(out))
		if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
			return nil, ErrMicrophoneAccessDenied
		}
		return nil, ErrNoMicrophoneFound
	}

	return &ffmpegStream{device: d, track: &ffmpegTrack{}}, nil
}

// FFmpegEncoderFactory builds encoders that run ffmpeg against the
// stream's capture input. Opus-in-webm and ogg encodings are supported;
// mp4 is not because its container cannot be streamed chunk-wise.
type FFmpegEncoderFactory struct {
	BinPath string
}

func NewFFmpegEncoderFactory(binPath string) *FFmpegEncoderFactory {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegEncoderFactory{BinPath: binPath}
}

func (f *FFmpegEncoderFactory) Supports(mimeType string) bool {
	switch mimeType {
	case "audio/webm;codecs=opus", "audio/webm", "audio/ogg;codecs=opus", "audio/wav":
		return true
	}
	return false
}

func (f *FFmpegEncoderFactory) New(mimeType string) (Encoder, error) {
	if !f.Supports(mimeType) {
		return nil, ErrCaptureUnsupported
	}
	return &ffmpegEncoder{binPath: f.BinPath, mimeType: mimeType}, nil
}

type ffmpegEncoder struct {
	binPath  string
	mimeType string

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

func (e *ffmpegEncoder) MimeType() string {
	return e.mimeType
}

func (e *ffmpegEncoder) Start(stream Stream, chunkInterval int) (<-chan Chunk, error) {
	fs, ok := stream.(*ffmpegStream)
	if !ok {
		return nil, errors.New("ffmpeg encoder requires an ffmpeg stream")
	}

	format, codecArgs := containerArgs(e.mimeType)

	ctx, cancel := context.WithCancel(context.Background())
	args := []string{
		"-f", fs.device.InputFlag,
		"-i", fs.device.InputName,
		"-ar", "48000",
		"-ac", "1",
	}
	args = append(args, codecArgs...)
	args = append(args, "-f", format, "pipe:1")

	cmd := exec.CommandContext(ctx, e.binPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	e.mu.Lock()
	e.cmd = cmd
	e.cancel = cancel
	e.mu.Unlock()
	fs.track.mu.Lock()
	fs.track.cancel = cancel
	fs.track.mu.Unlock()

	chunks := make(chan Chunk)
	go func() {
		defer close(chunks)
		defer cmd.Wait()
		buf := make([]byte, 32*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				chunks <- Chunk{Data: data}
			}
			if err != nil {
				return
			}
		}
	}()
	return chunks, nil
}

func (e *ffmpegEncoder) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func containerArgs(mimeType string) (format string, codec []string) {
	switch mimeType {
	case "audio/webm;codecs=opus", "audio/webm":
		return "webm", []string{"-c:a", "libopus", "-b:a", "64k"}
	case "audio/ogg;codecs=opus":
		return "ogg", []string{"-c:a", "libopus", "-b:a", "64k"}
	case "audio/wav":
		return "wav", []string{"-c:a", "pcm_s16le"}
	}
	return "webm", []string{"-c:a", "libopus", "-b:a", "64k"}
}
