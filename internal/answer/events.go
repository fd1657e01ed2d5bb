package answer

import (
	"errors"

	"github.com/google/uuid"
)

// EventType tags the StreamEvent union.
type EventType string

// Stream event types on the wire.
const (
	EventDelta     EventType = "delta"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// StreamEvent is the wire-level answer unit. Every event carries the
// owning chat id; completed and error are terminal (Done = true) and
// exactly one terminal event ends each request.
type StreamEvent struct {
	Type    EventType `json:"type"`
	ChatID  uuid.UUID `json:"chatId"`
	Content string    `json:"content,omitempty"` // delta fragment
	Answer  *string   `json:"answer"`            // completed: full answer, null when only deltas were produced
	Message string    `json:"message,omitempty"` // error: human-readable description
	Done    bool      `json:"done"`
}

// EmitFunc receives stream events in emission order. Returning an error
// stops the stream (the client is gone).
type EmitFunc func(StreamEvent) error

// ErrTerminated reports an attempted emit after the terminal event. This
// is a programming error surfaced loudly rather than silently dropped.
var ErrTerminated = errors.New("stream already terminated")

// emitter wraps an EmitFunc and enforces the one-terminal-event
// invariant for a single request.
type emitter struct {
	emit EmitFunc
	done bool
}

func (e *emitter) send(ev StreamEvent) error {
	if e.done {
		return ErrTerminated
	}
	if ev.Done {
		e.done = true
	}
	return e.emit(ev)
}

func (e *emitter) delta(chatID uuid.UUID, content string) error {
	return e.send(StreamEvent{Type: EventDelta, ChatID: chatID, Content: content})
}

func (e *emitter) completed(chatID uuid.UUID, answer string) error {
	ev := StreamEvent{Type: EventCompleted, ChatID: chatID, Done: true}
	if answer != "" {
		ev.Answer = &answer
	}
	return e.send(ev)
}

func (e *emitter) error(chatID uuid.UUID, message string) error {
	return e.send(StreamEvent{Type: EventError, ChatID: chatID, Message: message, Done: true})
}
