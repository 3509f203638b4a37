package session

// State identifies where a dictation session is in its lifecycle.
//
// The lifecycle is a loop: Idle -> Connecting -> Listening -> Processing ->
// Idle. Any failure while connecting lands in Error, which is not sticky; a
// new Connect is allowed from both Idle and Error.
type State string

const (
	// StateIdle means no session is running and all resources are released.
	StateIdle State = "idle"

	// StateConnecting covers credential acquisition, microphone acquisition,
	// and the socket handshake.
	StateConnecting State = "connecting"

	// StateListening means audio is flowing and transcript segments are
	// being received.
	StateListening State = "listening"

	// StateProcessing is the bounded drain window after end-of-stream is
	// signaled, before cleanup runs.
	StateProcessing State = "processing"

	// StateError means the last connect attempt failed. Resources are
	// released, same as idle.
	StateError State = "error"
)
