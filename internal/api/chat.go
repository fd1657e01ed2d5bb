package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/vlaship/rex/internal/answer"
	"github.com/vlaship/rex/internal/log"
	"github.com/vlaship/rex/internal/session"
)

// Answerer runs the answer pipeline, emitting stream events as they are
// produced.
type Answerer interface {
	Answer(ctx context.Context, req answer.Request, emit answer.EmitFunc) error
}

// maxChatBodySize caps chat request bodies at 1MB.
const maxChatBodySize = 1 << 20

type chatHandler struct {
	answerer Answerer
	logger   log.Logger
}

// chatRequest is the POST /api/chat/stream body.
type chatRequest struct {
	ChatID   string `json:"chatId,omitempty"`
	UserID   string `json:"userId"`
	Question string `json:"question"`
}

// stream answers a question over SSE. The response only switches to an
// event stream once the pipeline produces its first event, so requests
// rejected up front still get proper JSON status codes.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	var chatID *uuid.UUID
	if req.ChatID != "" {
		id, err := uuid.Parse(req.ChatID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_chat_id", "chatId must be a valid UUID", h.logger)
			return
		}
		chatID = &id
	}

	stream := &sseStream{w: w, flusher: flusher}

	err := h.answerer.Answer(r.Context(), answer.Request{
		ChatID:   chatID,
		UserID:   req.UserID,
		Question: req.Question,
	}, stream.send)

	switch {
	case err == nil:
		h.logger.Debug("chat stream completed", "userId", req.UserID)
	case stream.started:
		// Events already delivered; nothing useful left to send.
		h.logger.Debug("chat stream ended after start", "error", err)
	case errors.Is(err, context.Canceled):
		h.logger.Info("client disconnected before stream start", "userId", req.UserID)
	case errors.Is(err, answer.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "chat_not_found", "chat not found", h.logger)
	default:
		h.logger.Error("answering chat request", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}

// sseStream writes answer events in SSE framing, sending the stream
// headers lazily with the first event.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseStream) send(ev answer.StreamEvent) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.Header().Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
