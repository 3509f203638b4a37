package session

import "errors"

// Sentinel errors for the dictation lifecycle. Failures are wrapped around
// these so callers can classify them with errors.Is while keeping the
// underlying cause in the message.
var (
	// ErrAlreadyActive is returned by Connect while a session is already
	// connecting, listening, or processing.
	ErrAlreadyActive = errors.New("dictation session already active")

	// ErrAcquisitionFailed covers microphone permission denial or a missing
	// capture device during connect.
	ErrAcquisitionFailed = errors.New("microphone acquisition failed")

	// ErrAuthFailed covers credential acquisition: no usable token path
	// configured, or the credential endpoint rejected the request.
	ErrAuthFailed = errors.New("credential acquisition failed")

	// ErrConnectFailed covers socket handshake and network errors during
	// connect.
	ErrConnectFailed = errors.New("transcription socket connect failed")

	// ErrProtocol covers error frames (auth, quota, rate limit, generic)
	// arriving on an established stream. The session stays up; ending it is
	// the consumer's call.
	ErrProtocol = errors.New("transcription service error")

	// ErrUnexpectedClose covers the socket dropping while listening, without
	// a Disconnect.
	ErrUnexpectedClose = errors.New("transcription socket closed unexpectedly")
)
