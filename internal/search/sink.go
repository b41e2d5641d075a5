package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/forumly/pagefeed/pkg/logging"
)

const (
	indexRetries = 3
	indexBackoff = 200 * time.Millisecond
	indexTimeout = 5 * time.Second
)

// Document is what the write path pushes towards the search index. The feed
// subsystem never reads it back.
type Document struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`
	AuthorID   int64     `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Indexer is the full-text index boundary
type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, collection string, id int64) error
}

type opKind int

const (
	opIndex opKind = iota
	opDelete
)

type event struct {
	kind opKind
	doc  Document
}

// Sink is a write-behind buffer in front of the search index. Writes enqueue
// and return immediately; a single worker drains the queue with bounded
// retries. A full queue drops the event with a log line rather than blocking
// the request: the search index is a secondary sink, not a source of truth.
type Sink struct {
	indexer Indexer
	events  chan event
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewSink creates a sink with the given queue capacity and starts its worker
func NewSink(indexer Indexer, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &Sink{
		indexer: indexer,
		events:  make(chan event, buffer),
		logger:  logging.WithComponent("search-sink"),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Index enqueues a document upsert
func (s *Sink) Index(doc Document) {
	if s == nil {
		return
	}
	s.enqueue(event{kind: opIndex, doc: doc})
}

// Remove enqueues a document deletion
func (s *Sink) Remove(collection string, id int64) {
	if s == nil {
		return
	}
	s.enqueue(event{kind: opDelete, doc: Document{ID: id, Collection: collection}})
}

func (s *Sink) enqueue(ev event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("search queue full, dropping event",
			zap.String("collection", ev.doc.Collection), zap.Int64("id", ev.doc.ID))
	}
}

// Close drains pending events and stops the worker
func (s *Sink) Close() {
	if s == nil {
		return
	}
	close(s.events)
	s.wg.Wait()
}

func (s *Sink) run() {
	defer s.wg.Done()
	for ev := range s.events {
		s.apply(ev)
	}
}

func (s *Sink) apply(ev event) {
	backoff := indexBackoff
	for attempt := 1; attempt <= indexRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		var err error
		if ev.kind == opIndex {
			err = s.indexer.Index(ctx, ev.doc)
		} else {
			err = s.indexer.Delete(ctx, ev.doc.Collection, ev.doc.ID)
		}
		cancel()
		if err == nil {
			return
		}
		s.logger.Warn("search write failed",
			zap.String("collection", ev.doc.Collection), zap.Int64("id", ev.doc.ID),
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(backoff)
		backoff *= 2
	}
	s.logger.Error("dropping search event after retries",
		zap.String("collection", ev.doc.Collection), zap.Int64("id", ev.doc.ID))
}
