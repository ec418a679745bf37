package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrack struct {
	mu      sync.Mutex
	stopped int
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
}

func (t *fakeTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	track *fakeTrack
}

func (s *fakeStream) Tracks() []Track {
	return []Track{s.track}
}

type fakeDevice struct {
	stream  *fakeStream
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

// fakeEncoder emits the configured chunks after Stop, mimicking the
// asynchronous tail delivery of a real platform encoder.
type fakeEncoder struct {
	mimeType string
	chunks   [][]byte
	tail     [][]byte
	delay    time.Duration

	out      chan Chunk
	stopOnce sync.Once
}

func (e *fakeEncoder) MimeType() string { return e.mimeType }

func (e *fakeEncoder) Start(stream Stream, chunkInterval int) (<-chan Chunk, error) {
	e.out = make(chan Chunk)
	go func() {
		for _, c := range e.chunks {
			e.out <- Chunk{Data: c}
		}
	}()
	return e.out, nil
}

func (e *fakeEncoder) Stop() {
	e.stopOnce.Do(func() {
		go func() {
			if e.delay > 0 {
				time.Sleep(e.delay)
			}
			for _, c := range e.tail {
				e.out <- Chunk{Data: c}
			}
			close(e.out)
		}()
	})
}

type fakeFactory struct {
	supported map[string]bool
	encoder   *fakeEncoder
}

func (f *fakeFactory) Supports(mimeType string) bool {
	return f.supported[mimeType]
}

func (f *fakeFactory) New(mimeType string) (Encoder, error) {
	f.encoder.mimeType = mimeType
	return f.encoder, nil
}

func newFakeSetup(chunks, tail [][]byte) (*fakeDevice, *fakeFactory) {
	device := &fakeDevice{stream: &fakeStream{track: &fakeTrack{}}}
	factory := &fakeFactory{
		supported: map[string]bool{"audio/webm;codecs=opus": true},
		encoder:   &fakeEncoder{chunks: chunks, tail: tail, delay: 10 * time.Millisecond},
	}
	return device, factory
}

func chunkOf(size int) []byte {
	return make([]byte, size)
}

func TestNegotiateEncodingPrefersOpusWebm(t *testing.T) {
	tests := []struct {
		name      string
		supported map[string]bool
		want      string
		wantErr   error
	}{
		{
			name:      "full support picks opus in webm",
			supported: map[string]bool{"audio/webm;codecs=opus": true, "audio/webm": true, "audio/wav": true},
			want:      "audio/webm;codecs=opus",
		},
		{
			name:      "no opus falls back to plain webm",
			supported: map[string]bool{"audio/webm": true, "audio/mp4": true},
			want:      "audio/webm",
		},
		{
			name:      "safari style mp4 only",
			supported: map[string]bool{"audio/mp4": true},
			want:      "audio/mp4",
		},
		{
			name:      "platform default as last resort",
			supported: map[string]bool{"": true},
			want:      "",
		},
		{
			name:      "nothing supported",
			supported: map[string]bool{},
			wantErr:   ErrCaptureUnsupported,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NegotiateEncoding(&fakeFactory{supported: tc.supported, encoder: &fakeEncoder{}})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSessionArtifactNotReadyUntilEncoderFlushes(t *testing.T) {
	device, factory := newFakeSetup([][]byte{chunkOf(600)}, [][]byte{chunkOf(600)})
	session := NewSession(device, factory, Options{})

	require.NoError(t, session.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, session.Stop())

	// Immediately after Stop the tail chunks are still in flight.
	_, ready, err := session.Artifact()
	assert.NoError(t, err)
	// ready may already be true on a fast scheduler; if not, waiting on
	// Done must deliver it.
	if !ready {
		select {
		case <-session.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("session never finalized")
		}
	}

	artifact, ready, err := session.Artifact()
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, int64(1200), artifact.ByteSize)
	assert.Equal(t, "audio/webm;codecs=opus", artifact.MimeType)
	assert.Greater(t, artifact.DurationSeconds, 0.0)
}

func TestSessionRejectsTinyArtifact(t *testing.T) {
	device, factory := newFakeSetup(nil, [][]byte{chunkOf(400)})
	session := NewSession(device, factory, Options{})

	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Stop())
	<-session.Done()

	_, ready, err := session.Artifact()
	assert.True(t, ready)
	assert.ErrorIs(t, err, ErrRecordingTooShort)
}

func TestSessionRejectsEmptyCapture(t *testing.T) {
	device, factory := newFakeSetup(nil, nil)
	session := NewSession(device, factory, Options{})

	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Stop())
	<-session.Done()

	_, _, err := session.Artifact()
	assert.ErrorIs(t, err, ErrNoAudioCaptured)
}

func TestSessionReleasesTrackOnFinalize(t *testing.T) {
	device, factory := newFakeSetup([][]byte{chunkOf(2048)}, nil)
	session := NewSession(device, factory, Options{})

	require.NoError(t, session.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, session.Stop())
	<-session.Done()

	assert.GreaterOrEqual(t, device.stream.track.stopCount(), 1, "microphone must be released")
}

func TestSessionDisposeReleasesTrackMidRecording(t *testing.T) {
	device, factory := newFakeSetup([][]byte{chunkOf(2048)}, nil)
	session := NewSession(device, factory, Options{})

	require.NoError(t, session.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	session.Dispose()

	assert.GreaterOrEqual(t, device.stream.track.stopCount(), 1)

	// A disposed session cannot be restarted.
	assert.ErrorIs(t, session.Start(context.Background()), ErrDisposed)
	assert.ErrorIs(t, session.Stop(), ErrDisposed)
}

func TestSessionStartIsSingleUse(t *testing.T) {
	device, factory := newFakeSetup(nil, [][]byte{chunkOf(2048)})
	session := NewSession(device, factory, Options{})

	require.NoError(t, session.Start(context.Background()))
	assert.ErrorIs(t, session.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, session.Stop())
	assert.ErrorIs(t, session.Stop(), ErrNotStarted)
}

func TestSessionStartFailureLeavesDeviceUntouched(t *testing.T) {
	device := &fakeDevice{openErr: ErrMicrophoneAccessDenied}
	factory := &fakeFactory{
		supported: map[string]bool{"audio/webm;codecs=opus": true},
		encoder:   &fakeEncoder{},
	}
	session := NewSession(device, factory, Options{})

	err := session.Start(context.Background())
	assert.ErrorIs(t, err, ErrMicrophoneAccessDenied)

	// Failed start leaves the session reusable for a retry.
	device.openErr = nil
	device.stream = &fakeStream{track: &fakeTrack{}}
	assert.NoError(t, session.Start(context.Background()))
}
