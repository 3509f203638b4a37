package session

import "fmt"

// Frame shapes for the transcription socket. There is a single outbound
// envelope; inbound envelopes are discriminated by message_type, and unknown
// kinds are ignored so vendor additions pass through harmlessly.

// Outbound message type.
const msgTypeAudioChunk = "input_audio_chunk"

// Inbound message types.
const (
	msgTypeSessionStarted      = "session_started"
	msgTypePartialTranscript   = "partial_transcript"
	msgTypeCommittedTranscript = "committed_transcript"
	msgTypeCommittedWithWords  = "committed_transcript_with_timestamps"
	msgTypeAuthError           = "auth_error"
	msgTypeQuotaExceeded       = "quota_exceeded"
	msgTypeRateLimited         = "rate_limited"
	msgTypeGenericError        = "error"
)

// audioChunkMessage is the only outbound frame. A chunk carries base64 PCM16
// audio; the end-of-stream signal is the same shape with an empty payload and
// the commit flag set.
type audioChunkMessage struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit,omitempty"`
}

// serverMessage is the inbound envelope. Text is set on transcript kinds,
// Error on the error family, and Words on committed transcripts that carry
// per-word timing.
type serverMessage struct {
	MessageType string     `json:"message_type"`
	Text        string     `json:"text,omitempty"`
	Error       string     `json:"error,omitempty"`
	Words       []wireWord `json:"words,omitempty"`
}

type wireWord struct {
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// protocolError turns an error-family frame into an ErrProtocol-classified
// error carrying whatever detail the service included.
func protocolError(msg serverMessage) error {
	detail := msg.Error
	if detail == "" {
		detail = msg.Text
	}
	if detail == "" {
		detail = "no detail provided"
	}
	return fmt.Errorf("%w (%s): %s", ErrProtocol, msg.MessageType, detail)
}
