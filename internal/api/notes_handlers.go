package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/pkg/logger"
)

// ListNotes returns saved notes with pagination, newest first
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	// Parse pagination parameters
	limit, offset := parsePaginationParams(r)

	// Get notes from the service
	list, total, err := h.notes.List(limit, offset)
	if err != nil {
		h.logger.Error("Failed to retrieve notes", logger.Error(err))
		http.Error(w, "Failed to retrieve notes", http.StatusInternalServerError)
		return
	}

	// Create response
	response := map[string]any{
		"timestamp": time.Now(),
		"count":     len(list),
		"total":     total,
		"notes":     list,
	}

	// Write response
	WriteJSON(w, http.StatusOK, response)
}

// CreateNote saves a typed note without going through a dictation session
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.notes.Save(r.Context(), req.Content)
	if err != nil {
		if errors.Is(err, notes.ErrEmptyNote) {
			http.Error(w, "Note content is required", http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to save note", logger.Error(err))
		http.Error(w, "Failed to save note", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusCreated, note)
}

// GetNote returns a single note by ID
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	// Get note ID from URL
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing note ID", http.StatusBadRequest)
		return
	}

	note, err := h.notes.Get(id)
	if err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			http.Error(w, "Note not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to retrieve note", logger.Error(err))
		http.Error(w, "Failed to retrieve note", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, note)
}

// DeleteNote removes a note by ID
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	// Get note ID from URL
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing note ID", http.StatusBadRequest)
		return
	}

	if err := h.notes.Delete(id); err != nil {
		if errors.Is(err, notes.ErrNotFound) {
			http.Error(w, "Note not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to delete note", logger.Error(err))
		http.Error(w, "Failed to delete note", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "deleted",
		"id":     id,
	})
}

// SearchNotes ranks notes against a query by embedding similarity
func (h *Handler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing q parameter", http.StatusBadRequest)
		return
	}

	limit := 10 // Default result count
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	results, err := h.notes.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, notes.ErrSearchDisabled) {
			http.Error(w, "Semantic search is not enabled", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("Search failed", logger.Error(err))
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	// Create response
	response := map[string]any{
		"timestamp": time.Now(),
		"query":     query,
		"count":     len(results),
		"results":   results,
	}

	// Write response
	WriteJSON(w, http.StatusOK, response)
}

// Helper functions
func parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
