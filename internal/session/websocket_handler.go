package session

import (
	"github.com/voxnote/voxnote/internal/websocket"
	"github.com/voxnote/voxnote/pkg/logger"
)

// WebSocketHandler answers incoming dashboard messages. A client that just
// connected sends a status_request to catch up with the current session
// state instead of waiting for the next transition.
type WebSocketHandler struct {
	manager *Manager
	logger  *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(manager *Manager, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		logger:  log.Named("session-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeStatusRequest:
		return h.handleStatusRequest(client)
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

// handleStatusRequest replies to the requesting client with a state snapshot.
func (h *WebSocketHandler) handleStatusRequest(client *websocket.Client) error {
	status := h.manager.Status()

	message := &websocket.Message{
		Type: websocket.MessageTypeSessionState,
		Data: map[string]any{
			"state":          string(status.State),
			"display_text":   status.Display,
			"committed_text": status.Committed,
		},
	}

	// Send to the specific client, not broadcast
	if !client.SendMessage(message) {
		h.logger.Warn("Client send channel full, dropping status snapshot")
	}
	return nil
}
