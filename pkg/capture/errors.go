package capture

import "errors"

var (
	ErrMicrophoneAccessDenied = errors.New("microphone access denied")
	ErrNoMicrophoneFound      = errors.New("no microphone found")
	ErrCaptureUnsupported     = errors.New("audio capture is not supported on this device")
	ErrNoAudioCaptured        = errors.New("no audio was captured")
	ErrRecordingTooShort      = errors.New("recording too short to upload")
	ErrInvalidArtifactType    = errors.New("captured artifact is not audio")
	ErrAlreadyStarted         = errors.New("capture session already started")
	ErrNotStarted             = errors.New("capture session not started")
	ErrDisposed               = errors.New("capture session disposed")
)
