package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/pkg/logger"
)

// StartDictation begins a new dictation session. Starting is idempotent in
// the sense that a second start while one is running is rejected rather than
// spawning a parallel session.
func (h *Handler) StartDictation(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Dictation start requested")

	if err := h.dictation.Start(r.Context()); err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadyActive):
			http.Error(w, "A dictation session is already active", http.StatusConflict)
		case errors.Is(err, session.ErrAuthFailed),
			errors.Is(err, session.ErrAcquisitionFailed),
			errors.Is(err, session.ErrConnectFailed):
			h.logger.Error("Failed to start dictation", logger.Error(err))
			http.Error(w, fmt.Sprintf("Failed to start dictation: %v", err), http.StatusBadGateway)
		default:
			h.logger.Error("Failed to start dictation", logger.Error(err))
			http.Error(w, fmt.Sprintf("Failed to start dictation: %v", err), http.StatusInternalServerError)
		}
		return
	}

	WriteJSON(w, http.StatusOK, h.dictation.Status())
}

// StopDictation ends the active dictation and saves the committed transcript
// as a note. An empty transcript stops the session but saves nothing.
func (h *Handler) StopDictation(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Dictation stop requested")

	transcript, err := h.dictation.Stop(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			http.Error(w, "No dictation session is active", http.StatusConflict)
			return
		}
		h.logger.Error("Failed to stop dictation", logger.Error(err))
		http.Error(w, "Failed to stop dictation", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"timestamp":  time.Now(),
		"transcript": transcript,
	}

	note, err := h.notes.Save(r.Context(), transcript)
	switch {
	case err == nil:
		response["note"] = note
	case errors.Is(err, notes.ErrEmptyNote):
		// Nothing was said, so there is no note to keep.
	default:
		// The transcript is still returned to the caller even when
		// persistence fails, so the dictation is not lost.
		h.logger.Error("Failed to save note", logger.Error(err))
		response["save_error"] = "transcript could not be saved"
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetDictationStatus reports the current session state and transcript views
func (h *Handler) GetDictationStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.dictation.Status())
}
