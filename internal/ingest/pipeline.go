// Package ingest feeds documents into the knowledge store in the
// background. Callers hand over a batch and move on: enqueueing never
// blocks, processing is at-most-once, and failures are logged, never
// reported back or retried.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vlaship/rex/internal/knowledge"
)

// batchTimeout bounds embedding plus insert for one batch.
const batchTimeout = 2 * time.Minute

// Item is one document submitted for ingestion. Content may be any JSON
// value; it is coerced to text before indexing. Metadata is optional.
type Item struct {
	Content  any            `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the content in its indexed text form. Strings pass
// through unchanged; any other value is rendered as compact JSON.
func (it Item) Text() string {
	switch v := it.Content.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// Adder is the slice of the knowledge store the pipeline uses.
type Adder interface {
	AddBatch(ctx context.Context, docs []knowledge.Document) error
}

// Pipeline is a bounded queue drained by worker goroutines. Safe for
// concurrent use.
type Pipeline struct {
	adder  Adder
	queue  chan []Item
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Pipeline and starts its workers. logger may be nil.
func New(adder Adder, queueSize, workers int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}

	p := &Pipeline{
		adder:  adder,
		queue:  make(chan []Item, queueSize),
		logger: logger,
	}

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// Enqueue hands a batch to the pipeline without blocking. When the queue
// is full the batch is dropped and logged; the return value reports
// acceptance only; an accepted batch can still fail later.
func (p *Pipeline) Enqueue(items []Item) bool {
	if len(items) == 0 {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("ingest rejected, pipeline closed", "items", len(items))
		return false
	}

	select {
	case p.queue <- items:
		return true
	default:
		p.logger.Warn("ingest queue full, dropping batch", "items", len(items))
		return false
	}
}

// Close stops accepting batches, drains the queue, and waits for the
// workers to finish.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()
	for batch := range p.queue {
		if err := p.process(batch); err != nil {
			// Whole-batch failure is observable but non-blocking: the
			// batch is gone, the corpus can be re-ingested.
			p.logger.Error("ingest batch failed", "worker", id, "items", len(batch), "error", err)
		}
	}
}

func (p *Pipeline) process(batch []Item) error {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	docs := make([]knowledge.Document, 0, len(batch))
	for _, item := range batch {
		// Fresh identifier per item, even for content seen before:
		// ingestion does not dedupe.
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating document id: %w", err)
		}
		metadata := item.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		docs = append(docs, knowledge.Document{
			ID:       id,
			Content:  item.Text(),
			Metadata: metadata,
		})
	}

	if err := p.adder.AddBatch(ctx, docs); err != nil {
		return err
	}

	p.logger.Debug("ingested batch", "items", len(batch))
	return nil
}
