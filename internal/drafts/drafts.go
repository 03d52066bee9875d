// Package drafts persists unsubmitted form content so a crash, an
// accidental close, or an offline window never loses typed input.
//
// Drafts are keyed by form (one draft per key, newer saves overwrite
// older ones) and are only ever OFFERED back to the caller: loading a
// pending draft never mutates the form it belongs to. Submitting a form
// clears its draft.
package drafts

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Awaneesh03/digital-life-dashboard/internal/collections"
	"github.com/Awaneesh03/digital-life-dashboard/internal/localstore"
	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// DefaultAutosaveInterval is how long a form has to stay idle before
// its queued content is written out.
const DefaultAutosaveInterval = 3 * time.Second

// Draft is one persisted snapshot of unsubmitted form content.
type Draft struct {
	// Key identifies the form the draft belongs to.
	Key string
	// Data is the form content as it was last queued.
	Data record.Record
	// SavedAt is when the snapshot was written to the local store.
	SavedAt time.Time
}

type queuedDraft struct {
	data     record.Record
	queuedAt time.Time
}

// Saver debounces form snapshots and writes them to the local store.
// Rapid saves for the same key collapse into one write; only content
// that has been idle for the autosave interval is persisted.
type Saver struct {
	store    *localstore.Store
	interval time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	queued map[string]queuedDraft

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSaver creates a saver over the given store. Zero interval means
// DefaultAutosaveInterval; nil logger logs to stderr.
func NewSaver(store *localstore.Store, interval time.Duration, logger *log.Logger) *Saver {
	if interval == 0 {
		interval = DefaultAutosaveInterval
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[drafts] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Saver{
		store:    store,
		interval: interval,
		logger:   logger,
		queued:   make(map[string]queuedDraft),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the autosave loop. It does not block.
func (s *Saver) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.autosaveLoop()
}

// Stop flushes everything still queued and waits for the loop to exit.
// Content queued right before shutdown is written immediately rather
// than dropped.
func (s *Saver) Stop() {
	s.cancel()
	s.wg.Wait()
	s.flushOlderThan(0)
}

// Save queues form content for autosave. A second save for the same key
// replaces the queued content and restarts its idle clock.
func (s *Saver) Save(key string, data record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[key] = queuedDraft{data: data.Clone(), queuedAt: time.Now()}
}

// Flush writes all queued drafts out immediately, regardless of idle
// time.
func (s *Saver) Flush() {
	s.flushOlderThan(0)
}

// Pending returns the stored draft for key, or nil when there is none.
// The draft is offered back as data; applying it to a form is the
// caller's decision.
func (s *Saver) Pending(ctx context.Context, key string) (*Draft, error) {
	rec, err := s.store.GetContext(ctx, collections.Drafts, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft %s: %w", key, err)
	}
	if rec == nil {
		return nil, nil
	}

	draft := &Draft{Key: key}
	if data, ok := rec["data"].(map[string]any); ok {
		draft.Data = record.Record(data)
	}
	if raw, ok := rec["saved_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			draft.SavedAt = t
		}
	}
	return draft, nil
}

// Clear drops the queued and the stored draft for key. Called on form
// submit.
func (s *Saver) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.queued, key)
	s.mu.Unlock()

	if err := s.store.DeleteContext(ctx, collections.Drafts, key); err != nil {
		return fmt.Errorf("failed to clear draft %s: %w", key, err)
	}
	return nil
}

func (s *Saver) autosaveLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flushOlderThan(s.interval)
		}
	}
}

// flushOlderThan writes out every queued draft that has been idle for
// at least the given duration. A failed write keeps the draft queued
// for the next tick.
func (s *Saver) flushOlderThan(idle time.Duration) {
	now := time.Now()

	s.mu.Lock()
	due := make(map[string]queuedDraft)
	for key, q := range s.queued {
		if now.Sub(q.queuedAt) >= idle {
			due[key] = q
			delete(s.queued, key)
		}
	}
	s.mu.Unlock()

	for key, q := range due {
		rec := record.Record{
			"id":       key,
			"data":     map[string]any(q.data),
			"saved_at": now.UTC().Format(time.RFC3339Nano),
		}
		if err := s.store.Put(collections.Drafts, rec); err != nil {
			s.logger.Printf("Failed to autosave draft %s: %v", key, err)
			s.mu.Lock()
			if _, requeued := s.queued[key]; !requeued {
				s.queued[key] = q
			}
			s.mu.Unlock()
		}
	}
}
