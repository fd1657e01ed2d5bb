package answer

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// FlowName is the registered name of the answer flow.
const FlowName = "rex/answer"

// FlowInput is the flow-level request. ChatID is optional; an empty
// value starts a new chat.
type FlowInput struct {
	ChatID   string `json:"chatId,omitempty"`
	UserID   string `json:"userId"`
	Question string `json:"question"`
}

// FlowOutput is the flow-level result.
type FlowOutput struct {
	ChatID string `json:"chatId"`
	Answer string `json:"answer"`
}

// FlowChunk is one streamed fragment.
type FlowChunk struct {
	Text string `json:"text"`
}

// Flow is the Genkit streaming flow type for answers.
type Flow = core.Flow[FlowInput, FlowOutput, FlowChunk]

// DefineFlow registers the orchestrator as a Genkit streaming flow for
// observability and the dev UI. Call once at startup; Genkit panics on
// duplicate registration.
func (o *Orchestrator) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, in FlowInput, cb func(context.Context, FlowChunk) error) (FlowOutput, error) {
			req := Request{UserID: in.UserID, Question: in.Question}
			if in.ChatID != "" {
				id, err := uuid.Parse(in.ChatID)
				if err != nil {
					return FlowOutput{}, fmt.Errorf("%w: chatId: %v", ErrValidation, err)
				}
				req.ChatID = &id
			}

			var (
				out     FlowOutput
				failMsg string
			)
			emit := func(ev StreamEvent) error {
				switch ev.Type {
				case EventDelta:
					if cb != nil {
						return cb(ctx, FlowChunk{Text: ev.Content})
					}
				case EventCompleted:
					out.ChatID = ev.ChatID.String()
					if ev.Answer != nil {
						out.Answer = *ev.Answer
					}
				case EventError:
					failMsg = ev.Message
				}
				return nil
			}

			if err := o.Answer(ctx, req, emit); err != nil {
				return FlowOutput{}, err
			}
			if failMsg != "" {
				return FlowOutput{}, errors.New(failMsg)
			}
			return out, nil
		})
}
