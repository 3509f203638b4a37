package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxnote/voxnote/internal/config"
)

// hubEvent is one broadcast captured by the fake hub. Kinds are asserted as
// wire literals so a renamed constant cannot silently change the dashboard
// protocol.
type hubEvent struct {
	kind string
	data map[string]any
}

type fakeHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *fakeHub) BroadcastEvent(messageType string, data map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{kind: messageType, data: data})
}

func (h *fakeHub) snapshot() []hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hubEvent(nil), h.events...)
}

func (h *fakeHub) waitFor(t *testing.T, kind string, match func(map[string]any) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range h.snapshot() {
			if ev.kind == kind && (match == nil || match(ev.data)) {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s broadcast; got %v", kind, h.snapshot())
}

func newTestManager(t *testing.T, baseURL string, provider TokenProvider) (*Manager, *fakeCapture, *fakeHub) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Transcription.BaseURL = baseURL
	cfg.Transcription.WebSocketPath = ""
	cfg.Transcription.Model = "scribe-rt-1"
	cfg.Transcription.Language = "en"
	cfg.Transcription.ConnectTimeoutSecs = 2
	cfg.Transcription.DrainGraceMs = 100

	capture := &fakeCapture{}
	hub := &fakeHub{}
	mgr := NewManager(cfg, provider, capture, hub, nil, newTestLogger(t))
	return mgr, capture, hub
}

func TestManagerStopWithoutSession(t *testing.T) {
	mgr, _, _ := newTestManager(t, "http://127.0.0.1:9", &fakeProvider{})

	_, err := mgr.Stop(context.Background())
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("Stop error = %v, want ErrNoActiveSession", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	h := newWSHarness(t, scriptedHandler([]string{
		`{"message_type":"partial_transcript","text":"testing"}`,
		`{"message_type":"committed_transcript","text":"testing one two"}`,
	}, nil))
	mgr, capture, hub := newTestManager(t, h.srv.URL, &fakeProvider{})

	status := mgr.Status()
	if status.State != StateIdle || status.Display != "" || status.StartedAt != nil {
		t.Fatalf("initial status = %+v, want idle and empty", status)
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	hub.waitFor(t, "session_state", func(data map[string]any) bool {
		return data["state"] == "listening"
	})

	status = mgr.Status()
	if status.State != StateListening {
		t.Errorf("status state = %s, want listening", status.State)
	}
	if status.StartedAt == nil {
		t.Error("status has no start time while listening")
	}

	capture.deliver(make([]float32, 160))
	hub.waitFor(t, "transcript_partial", func(data map[string]any) bool {
		return data["text"] == "testing"
	})
	hub.waitFor(t, "transcript_committed", func(data map[string]any) bool {
		return data["text"] == "testing one two"
	})

	status = mgr.Status()
	if status.Display != "testing one two" || status.Committed != "testing one two" {
		t.Errorf("status display/committed = %q/%q, want both %q",
			status.Display, status.Committed, "testing one two")
	}

	text, err := mgr.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if text != "testing one two" {
		t.Errorf("Stop returned %q, want %q", text, "testing one two")
	}
	hub.waitFor(t, "session_state", func(data map[string]any) bool {
		return data["state"] == "idle"
	})

	status = mgr.Status()
	if status.State != StateIdle {
		t.Errorf("status state = %s after stop, want idle", status.State)
	}
	if status.StartedAt != nil {
		t.Error("status still carries a start time after stop")
	}

	wantKinds := []string{
		"session_state", // connecting
		"session_state", // listening
		"transcript_partial",
		"transcript_committed",
		"session_state", // processing
		"session_state", // idle
	}
	events := hub.snapshot()
	if len(events) != len(wantKinds) {
		t.Fatalf("broadcast count = %d (%v), want %d", len(events), events, len(wantKinds))
	}
	for i, want := range wantKinds {
		if events[i].kind != want {
			t.Errorf("broadcast[%d] = %s, want %s", i, events[i].kind, want)
		}
	}
}

func TestManagerStartFailureBroadcasts(t *testing.T) {
	mgr, _, hub := newTestManager(t, "http://127.0.0.1:9",
		&fakeProvider{err: errors.New("relay offline")})

	err := mgr.Start(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Start error = %v, want ErrAuthFailed", err)
	}

	hub.waitFor(t, "session_error", func(data map[string]any) bool {
		msg, ok := data["error"].(string)
		return ok && strings.Contains(msg, "relay offline")
	})
	hub.waitFor(t, "session_state", func(data map[string]any) bool {
		return data["state"] == "error"
	})

	if got := mgr.Status().State; got != StateError {
		t.Errorf("status state = %s, want error", got)
	}
}

func TestManagerStartWhileActive(t *testing.T) {
	h := newWSHarness(t, scriptedHandler(nil, nil))
	mgr, _, _ := newTestManager(t, h.srv.URL, &fakeProvider{})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Start(context.Background()); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Start error = %v, want ErrAlreadyActive", err)
	}

	if _, err := mgr.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
