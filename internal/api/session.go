package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vlaship/rex/internal/log"
	"github.com/vlaship/rex/internal/session"
)

// maxTitleLength caps user-supplied chat titles in runes.
const maxTitleLength = 200

// SessionStore is the slice of the session store the API uses.
type SessionStore interface {
	ListByUser(ctx context.Context, userID string) ([]session.ChatSession, error)
	Rename(ctx context.Context, chatID uuid.UUID, userID, newTitle string) (session.ChatSession, error)
}

type sessionHandler struct {
	store  SessionStore
	logger log.Logger
}

// list returns the caller's chat sessions, newest first.
// GET /api/sessions?userId=...
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", "userId query parameter is required", h.logger)
		return
	}

	sessions, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing sessions", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "total": len(sessions)}, h.logger)
}

// renameRequest is the POST /api/sessions/rename body.
type renameRequest struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	NewTitle string `json:"newTitle"`
}

// rename sets a chat's title.
func (h *sessionHandler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chat_id", "chatId must be a valid UUID", h.logger)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id", "userId is required", h.logger)
		return
	}
	if req.NewTitle == "" {
		writeError(w, http.StatusBadRequest, "missing_title", "newTitle is required", h.logger)
		return
	}
	if utf8.RuneCountInString(req.NewTitle) > maxTitleLength {
		writeError(w, http.StatusBadRequest, "title_too_long", "newTitle exceeds 200 characters", h.logger)
		return
	}

	renamed, err := h.store.Rename(r.Context(), chatID, req.UserID, req.NewTitle)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat_not_found", "chat not found", h.logger)
			return
		}
		h.logger.Error("renaming session", "chatId", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, renamed, h.logger)
}
