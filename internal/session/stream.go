package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxnote/voxnote/pkg/logger"
)

// toWebSocketBase converts an http(s) base URL to the corresponding ws(s) URL.
// e.g. https://api.example -> wss://api.example
func toWebSocketBase(httpBase string) string {
	b := strings.TrimRight(httpBase, "/")
	if strings.HasPrefix(b, "https://") {
		return "wss://" + strings.TrimPrefix(b, "https://")
	} else if strings.HasPrefix(b, "http://") {
		return "ws://" + strings.TrimPrefix(b, "http://")
	}
	// If the provided base already looks like ws:// or wss://, return as-is.
	return b
}

// StreamURL builds the full socket endpoint from the configured vendor base
// URL and websocket path.
func StreamURL(baseURL, websocketPath string) string {
	return toWebSocketBase(baseURL) + websocketPath
}

// StreamEvent is one decoded occurrence on the stream. Exactly one of the
// fields describes it: a transcript Segment, an Err (protocol error frames
// while the socket stays up), or Closed when the read pump exits. A Closed
// event may carry an Err when the transport failed rather than being closed
// locally.
type StreamEvent struct {
	Segment *Segment
	Err     error
	Closed  bool
}

// DialOptions carry the per-session parameters for opening the socket.
type DialOptions struct {
	URL      string        // full ws(s) endpoint
	Token    string        // single-use stream credential
	Model    string        // vendor model selector
	Language string        // language hint
	Timeout  time.Duration // handshake budget
}

// StreamConnection is one live socket to the transcription service. Writes
// are serialized by a mutex; the read pump decodes inbound frames into events
// until the socket closes.
type StreamConnection struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	events    chan StreamEvent
	logger    *logger.Logger
}

// DialStream opens the transcription socket with the supplied one-time
// credential. It dials exactly once; there is no retry at this layer, so a
// handshake failure surfaces immediately as ErrConnectFailed.
func DialStream(ctx context.Context, opts DialOptions, log *logger.Logger) (*StreamConnection, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid stream URL: %v", ErrConnectFailed, err)
	}
	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("language", opts.Language)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.Timeout,
	}

	headers := http.Header{}
	headers.Set("Authorization", fmt.Sprintf("Bearer %s", opts.Token))

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake rejected with status %s", ErrConnectFailed, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	sc := &StreamConnection{
		conn:      conn,
		closeChan: make(chan struct{}),
		events:    make(chan StreamEvent, 64),
		logger:    log.Named("stream"),
	}
	go sc.readPump()

	sc.logger.Debug("Transcription socket connected", logger.String("status", resp.Status))
	return sc, nil
}

// Events returns the inbound event channel. It is closed after the Closed
// event is delivered.
func (sc *StreamConnection) Events() <-chan StreamEvent {
	return sc.events
}

// SendAudio transmits one encoded audio frame.
func (sc *StreamConnection) SendAudio(audioBase64 string) error {
	return sc.writeMessage(audioChunkMessage{
		MessageType: msgTypeAudioChunk,
		AudioBase64: audioBase64,
	})
}

// SignalEndOfStream tells the service no more audio will follow and buffered
// recognition should be flushed. The envelope is the regular chunk shape with
// an empty payload and the commit flag set.
func (sc *StreamConnection) SignalEndOfStream() error {
	return sc.writeMessage(audioChunkMessage{
		MessageType: msgTypeAudioChunk,
		AudioBase64: "",
		Commit:      true,
	})
}

func (sc *StreamConnection) writeMessage(msg audioChunkMessage) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return fmt.Errorf("stream connection is closed")
	}
	return sc.conn.WriteJSON(msg)
}

// Close closes the socket idempotently. The read pump notices and delivers
// its final Closed event without a transport error.
func (sc *StreamConnection) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return nil
	}
	sc.closed = true
	close(sc.closeChan)
	return sc.conn.Close()
}

func (sc *StreamConnection) isClosed() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.closed
}

// readPump reads inbound frames until the socket dies, translating them into
// events. Event order matches arrival order.
func (sc *StreamConnection) readPump() {
	defer close(sc.events)

	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			if sc.isClosed() {
				// Local Close; not a transport failure.
				sc.events <- StreamEvent{Closed: true}
			} else {
				sc.events <- StreamEvent{Closed: true, Err: err}
			}
			return
		}
		sc.dispatch(data)
	}
}

// dispatch decodes one inbound frame and emits the matching event. Unknown
// message kinds are ignored.
func (sc *StreamConnection) dispatch(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		sc.logger.Warn("Dropping malformed frame", logger.Error(err))
		return
	}

	switch msg.MessageType {
	case msgTypeSessionStarted:
		sc.logger.Info("Transcription stream session started")

	case msgTypePartialTranscript:
		sc.events <- StreamEvent{Segment: &Segment{Text: msg.Text}}

	case msgTypeCommittedTranscript, msgTypeCommittedWithWords:
		seg := &Segment{Text: msg.Text, Final: true}
		for _, w := range msg.Words {
			seg.Words = append(seg.Words, Word{Text: w.Text, StartMs: w.StartMs, EndMs: w.EndMs})
		}
		sc.events <- StreamEvent{Segment: seg}

	case msgTypeAuthError, msgTypeQuotaExceeded, msgTypeRateLimited, msgTypeGenericError:
		sc.events <- StreamEvent{Err: protocolError(msg)}

	default:
		sc.logger.Debug("Ignoring unknown message type",
			logger.String("message_type", msg.MessageType))
	}
}
