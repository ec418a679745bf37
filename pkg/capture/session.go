package capture

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultChunkIntervalMs is how often the encoder emits a chunk.
	DefaultChunkIntervalMs = 1000

	// DefaultMinArtifactBytes rejects blobs a muted or instantly
	// stopped recorder would produce.
	DefaultMinArtifactBytes = 1000
)

// Artifact is the finalized output of a capture session.
type Artifact struct {
	Data            []byte
	MimeType        string
	ByteSize        int64
	DurationSeconds float64
}

type Options struct {
	ChunkIntervalMs  int
	MinArtifactBytes int64
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateRecording
	stateFinalizing
	stateDone
	stateDisposed
)

// Session records one participant's audio for a single call. It owns
// the microphone stream and encoder for its lifetime; a session is
// single use and must be disposed after the artifact is consumed.
type Session struct {
	device  Device
	factory EncoderFactory
	opts    Options

	mu        sync.Mutex
	state     sessionState
	stream    Stream
	encoder   Encoder
	buf       bytes.Buffer
	startedAt time.Time
	elapsed   time.Duration

	finalizeOnce sync.Once
	done         chan struct{}
	artifact     *Artifact
	finalErr     error
}

func NewSession(device Device, factory EncoderFactory, opts Options) *Session {
	if opts.ChunkIntervalMs <= 0 {
		opts.ChunkIntervalMs = DefaultChunkIntervalMs
	}
	if opts.MinArtifactBytes <= 0 {
		opts.MinArtifactBytes = DefaultMinArtifactBytes
	}
	return &Session{
		device:  device,
		factory: factory,
		opts:    opts,
		done:    make(chan struct{}),
	}
}

// Start negotiates an encoding, opens the microphone and begins
// accumulating chunks. It fails without touching the done channel so
// the caller can retry with a fresh session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateDisposed:
		return ErrDisposed
	case stateIdle:
	default:
		return ErrAlreadyStarted
	}

	mimeType, err := NegotiateEncoding(s.factory)
	if err != nil {
		return err
	}

	stream, err := s.device.Open(ctx)
	if err != nil {
		return err
	}

	encoder, err := s.factory.New(mimeType)
	if err != nil {
		releaseTracks(stream)
		return err
	}

	chunks, err := encoder.Start(stream, s.opts.ChunkIntervalMs)
	if err != nil {
		releaseTracks(stream)
		return err
	}

	s.stream = stream
	s.encoder = encoder
	s.startedAt = time.Now()
	s.state = stateRecording

	go s.consume(chunks)
	return nil
}

// consume drains encoder chunks until the encoder closes the channel,
// then finalizes. It runs for the whole recording lifetime.
func (s *Session) consume(chunks <-chan Chunk) {
	for chunk := range chunks {
		s.mu.Lock()
		if s.state == stateRecording || s.state == stateFinalizing {
			s.buf.Write(chunk.Data)
		}
		s.mu.Unlock()
	}
	s.finalize()
}

// Stop asks the encoder to flush. The artifact is NOT ready when Stop
// returns: the encoder still delivers its tail chunks asynchronously.
// Wait on Done() or poll Artifact().
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == stateDisposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state != stateRecording {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = stateFinalizing
	s.elapsed = time.Since(s.startedAt)
	encoder := s.encoder
	s.mu.Unlock()

	encoder.Stop()
	return nil
}

func (s *Session) finalize() {
	s.finalizeOnce.Do(func() {
		s.mu.Lock()

		releaseTracks(s.stream)

		data := make([]byte, s.buf.Len())
		copy(data, s.buf.Bytes())
		elapsed := s.elapsed
		if elapsed == 0 && !s.startedAt.IsZero() {
			elapsed = time.Since(s.startedAt)
		}
		mimeType := ""
		if s.encoder != nil {
			mimeType = s.encoder.MimeType()
		}

		artifact := &Artifact{
			Data:            data,
			MimeType:        mimeType,
			ByteSize:        int64(len(data)),
			DurationSeconds: elapsed.Seconds(),
		}

		err := validateArtifact(artifact, s.opts.MinArtifactBytes)
		if err != nil {
			s.finalErr = err
		} else {
			s.artifact = artifact
		}
		if s.state != stateDisposed {
			s.state = stateDone
		}

		s.mu.Unlock()
		close(s.done)
	})
}

// Done is closed once the artifact (or a finalization error) is ready.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Artifact returns the finalized artifact. Before finalization it
// reports not-ready with no error, so callers may poll instead of
// waiting on Done().
func (s *Session) Artifact() (*Artifact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil && s.finalErr == nil {
		return nil, false, nil
	}
	return s.artifact, true, s.finalErr
}

// Dispose releases the microphone regardless of state. Safe to call
// multiple times and from any state, including mid-recording.
func (s *Session) Dispose() {
	s.mu.Lock()
	prev := s.state
	s.state = stateDisposed
	encoder := s.encoder
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if prev == stateRecording && encoder != nil {
		encoder.Stop()
	}
	releaseTracks(stream)
}

func validateArtifact(a *Artifact, minBytes int64) error {
	if a.ByteSize == 0 {
		return ErrNoAudioCaptured
	}
	if a.ByteSize < minBytes {
		return ErrRecordingTooShort
	}
	if !strings.HasPrefix(strings.ToLower(a.MimeType), "audio/") {
		return ErrInvalidArtifactType
	}
	return nil
}

func releaseTracks(stream Stream) {
	if stream == nil {
		return
	}
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}
