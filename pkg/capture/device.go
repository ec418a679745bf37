package capture

import "context"

// Track is a live audio track handed out by a device. Stopping it
// releases the underlying hardware handle.
type Track interface {
	Stop()
}

// Stream is an open microphone stream holding one or more tracks.
type Stream interface {
	Tracks() []Track
}

// Device grants access to a microphone. Open applies the standard
// voice constraints: echo cancellation, noise suppression and
// automatic gain control.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Chunk is one encoded slice of audio pushed by an encoder.
type Chunk struct {
	Data []byte
}

// Encoder turns a live stream into timed encoded chunks. After Stop is
// called the encoder flushes its tail and closes the chunk channel;
// consuming until the channel closes yields the complete artifact.
type Encoder interface {
	Start(stream Stream, chunkInterval int) (<-chan Chunk, error)
	Stop()
	MimeType() string
}

// EncoderFactory reports which encodings the platform supports and
// constructs encoders for them.
type EncoderFactory interface {
	Supports(mimeType string) bool
	New(mimeType string) (Encoder, error)
}

// preferredEncodings is ordered best-first: opus in webm, then
// container fallbacks for platforms without webm support.
var preferredEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/wav",
}

// NegotiateEncoding picks the first supported encoding from the
// preferred list. The empty string means the factory default is used.
func NegotiateEncoding(factory EncoderFactory) (string, error) {
	for _, mt := range preferredEncodings {
		if factory.Supports(mt) {
			return mt, nil
		}
	}
	if factory.Supports("") {
		return "", nil
	}
	return "", ErrCaptureUnsupported
}
