package tools

import (
	"time"

	"github.com/firebase/genkit/go/ai"
)

// CurrentTimeInput defines input for current_time (none needed).
type CurrentTimeInput struct{}

// CurrentTimeOutput is the current_time result.
type CurrentTimeOutput struct {
	Time      string `json:"time"`
	Timestamp int64  `json:"timestamp"`
}

// CurrentTime returns the current time in RFC 3339 format.
func (r *Registry) CurrentTime(_ *ai.ToolContext, _ CurrentTimeInput) (CurrentTimeOutput, error) {
	now := time.Now()
	return CurrentTimeOutput{
		Time:      now.Format(time.RFC3339),
		Timestamp: now.Unix(),
	}, nil
}
