package api

import (
	"encoding/json"
	"net/http"

	"github.com/vlaship/rex/internal/ingest"
	"github.com/vlaship/rex/internal/log"
)

// Request body limits for ingestion.
const (
	maxIngestBodySize = 4 << 20 // 4MB
	maxIngestItems    = 100
)

// Enqueuer accepts document batches for asynchronous indexing.
type Enqueuer interface {
	Enqueue(items []ingest.Item) bool
}

type ingestHandler struct {
	pipeline Enqueuer
	logger   log.Logger
}

// ingest accepts a document batch for asynchronous indexing. The body is
// a bare JSON array of items. The call returns 202 as soon as the batch
// is queued; indexing happens in the background and is never awaited.
func (h *ingestHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var items []ingest.Item
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "empty_batch", "batch must not be empty", h.logger)
		return
	}
	if len(items) > maxIngestItems {
		writeError(w, http.StatusBadRequest, "batch_too_large", "at most 100 items per batch", h.logger)
		return
	}
	for _, item := range items {
		if item.Text() == "" {
			writeError(w, http.StatusBadRequest, "empty_content", "every item needs content", h.logger)
			return
		}
	}

	if !h.pipeline.Enqueue(items) {
		// Queue full or shutting down; the batch is dropped, not delayed.
		writeError(w, http.StatusServiceUnavailable, "queue_full", "ingestion queue is full, retry later", h.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(items)}, h.logger)
}
