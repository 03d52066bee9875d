// Package syncengine drains the outbox against the remote store, applies
// bounded retries, and exposes the mutate-with-offline entry points every
// domain module routes through.
//
// The engine owns the shared sync context: the local store handle, the
// outbox queue, the connectivity flag, and the resolver are injected
// once at construction and shared by every trigger (UI mutation,
// periodic timer, reconnect event).
package syncengine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Awaneesh03/digital-life-dashboard/internal/connectivity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/identity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/localstore"
	"github.com/Awaneesh03/digital-life-dashboard/internal/outbox"
	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
	"github.com/Awaneesh03/digital-life-dashboard/internal/remote"
	"github.com/Awaneesh03/digital-life-dashboard/internal/resolver"
)

// Retry and scheduling defaults.
const (
	// DefaultMaxRetries is how many failed replays an entry survives
	// before it is discarded with a failure notice.
	DefaultMaxRetries = 3

	// DefaultDrainInterval is how often the outbox is drained while
	// online, independent of explicit triggers.
	DefaultDrainInterval = 30 * time.Second

	// DefaultStabilizeDelay is how long to wait after a reconnect
	// before draining and reconciling, letting the network settle.
	DefaultStabilizeDelay = 5 * time.Second
)

// Config holds engine tuning. Zero values fall back to the defaults.
type Config struct {
	// MaxRetries is the per-entry retry ceiling.
	MaxRetries int

	// DrainInterval is the periodic drain cadence while online.
	DrainInterval time.Duration

	// StabilizeDelay is the pause between a reconnect and the drain +
	// reconciliation it triggers.
	StabilizeDelay time.Duration

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     DefaultMaxRetries,
		DrainInterval:  DefaultDrainInterval,
		StabilizeDelay: DefaultStabilizeDelay,
		Logger:         log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Engine coordinates local persistence, the outbox, and the remote store.
type Engine struct {
	store    *localstore.Store
	queue    *outbox.Queue
	remote   remote.Store
	monitor  *connectivity.Monitor
	identity identity.Provider
	resolver *resolver.Resolver
	notifier Notifier
	config   *Config

	// drainMu guards the single-flight drain discipline: one pass at a
	// time, triggers during a pass coalesce into one follow-up pass.
	drainMu  sync.Mutex
	draining bool
	rerun    bool

	obsMu     sync.Mutex
	observers []func(State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine. Notifier may be nil (notices are dropped);
// config may be nil (defaults apply).
func New(store *localstore.Store, queue *outbox.Queue, rs remote.Store, monitor *connectivity.Monitor, id identity.Provider, res *resolver.Resolver, notifier Notifier, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.DrainInterval == 0 {
		config.DrainInterval = DefaultDrainInterval
	}
	if config.StabilizeDelay == 0 {
		config.StabilizeDelay = DefaultStabilizeDelay
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		store:    store,
		queue:    queue,
		remote:   rs,
		monitor:  monitor,
		identity: id,
		resolver: res,
		notifier: notifier,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}

	monitor.Subscribe(e.onConnectivity)
	return e
}

// Start launches the periodic drain loop and, when already online, the
// startup drain and reconciliation sweep. It does not block; use Stop
// for shutdown.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.drainLoop()

	if e.monitor.IsOnline() {
		e.wg.Add(1)
		go e.settleThenSync()
	}
}

// Stop cancels background work and waits for in-flight passes. A drain
// pass that already started runs to completion; individual failures
// during shutdown are ordinary replay failures.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

// OnState registers an observer for sync-state changes. Observers are
// called after outbox size changes and connectivity transitions.
func (e *Engine) OnState(fn func(State)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, fn)
}

// State returns the current observable sync state.
func (e *Engine) State(ctx context.Context) State {
	pending, err := e.queue.Size(ctx)
	if err != nil {
		e.config.Logger.Printf("Warning: failed to size outbox: %v", err)
	}

	switch {
	case !e.monitor.IsOnline():
		return State{Mode: ModeOffline, Pending: pending}
	case pending > 0:
		return State{Mode: ModeSyncing, Pending: pending}
	default:
		return State{Mode: ModeSynced}
	}
}

// Drain replays every pending outbox entry in enqueue order. Passes are
// single-flight: a trigger arriving mid-pass schedules exactly one
// follow-up pass instead of overlapping.
func (e *Engine) Drain(ctx context.Context) error {
	e.drainMu.Lock()
	if e.draining {
		e.rerun = true
		e.drainMu.Unlock()
		return nil
	}
	e.draining = true
	e.drainMu.Unlock()

	var err error
	for {
		err = e.drainOnce(ctx)

		e.drainMu.Lock()
		again := e.rerun && err == nil && ctx.Err() == nil
		e.rerun = false
		if !again {
			e.draining = false
			e.drainMu.Unlock()
			break
		}
		e.drainMu.Unlock()
	}
	return err
}

// drainOnce is one replay pass over the queue. Entry failures are
// isolated: a permanently failing entry is discarded with a notice and
// the pass continues with the rest.
func (e *Engine) drainOnce(ctx context.Context) error {
	if !e.monitor.IsOnline() {
		return nil
	}

	user, err := e.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve current user: %w", err)
	}
	if user == nil {
		return nil
	}

	entries, err := e.queue.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	for _, entry := range entries {
		if err := e.replay(ctx, user, entry); err != nil {
			e.config.Logger.Printf("Replay failed for %s %s/%s: %v",
				entry.Op, entry.Collection, entry.Record.ID(), err)

			retries, bumpErr := e.queue.Bump(ctx, entry.Seq)
			if bumpErr != nil {
				return bumpErr
			}
			if retries > e.config.MaxRetries {
				if delErr := e.queue.Delete(ctx, entry.Seq); delErr != nil {
					return delErr
				}
				e.config.Logger.Printf("Discarding %s %s/%s after %d retries",
					entry.Op, entry.Collection, entry.Record.ID(), e.config.MaxRetries)
				e.notifier.SyncFailed(entry.Op.String(), entry.Collection)
				e.publishState(ctx)
			}
			continue
		}

		if err := e.queue.Delete(ctx, entry.Seq); err != nil {
			return err
		}
		e.publishState(ctx)
	}

	return nil
}

// replay attempts one entry's remote operation. "Not found" on update or
// delete replay counts as success: the record already reached the
// desired state through another path.
func (e *Engine) replay(ctx context.Context, user *identity.User, entry outbox.Entry) error {
	switch entry.Op {
	case outbox.OpCreate:
		payload := entry.Record.Clone()
		tempID := payload.ID()
		delete(payload, "id") // the remote store issues the real id
		payload["user_id"] = user.ID

		confirmed, err := e.remote.Insert(ctx, entry.Collection, payload)
		if err != nil {
			return err
		}
		return e.adoptConfirmed(ctx, entry.Collection, tempID, confirmed)

	case outbox.OpUpdate:
		err := e.remote.Update(ctx, entry.Collection, entry.Record.ID(), entry.Record)
		if remote.IsNotFound(err) {
			return nil
		}
		return err

	case outbox.OpDelete:
		err := e.remote.Delete(ctx, entry.Collection, entry.Record.ID())
		if remote.IsNotFound(err) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("unknown outbox operation %v", entry.Op)
	}
}

// adoptConfirmed swaps a temp-id local copy for the remote-confirmed
// record carrying the issued id.
func (e *Engine) adoptConfirmed(ctx context.Context, collection, tempID string, confirmed record.Record) error {
	if record.IsTempID(tempID) {
		if err := e.store.DeleteContext(ctx, collection, tempID); err != nil {
			return err
		}
	}
	return e.store.PutContext(ctx, collection, confirmed)
}

// drainLoop is the periodic drain ticker, active while online.
func (e *Engine) drainLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return

		case <-ticker.C:
			if !e.monitor.IsOnline() {
				continue
			}
			if err := e.Drain(e.ctx); err != nil {
				e.config.Logger.Printf("Periodic drain failed: %v", err)
			}
		}
	}
}

// onConnectivity reacts to reachability transitions: every transition
// refreshes the status surface, and a transition to online schedules the
// stabilized drain + reconciliation pass.
func (e *Engine) onConnectivity(online bool) {
	e.publishState(e.ctx)

	if !online {
		return
	}

	e.wg.Add(1)
	go e.settleThenSync()
}

// settleThenSync waits out the stabilization delay, then drains the
// outbox and sweeps every collection for conflicts.
func (e *Engine) settleThenSync() {
	defer e.wg.Done()

	timer := time.NewTimer(e.config.StabilizeDelay)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
		return
	case <-timer.C:
	}

	if err := e.Drain(e.ctx); err != nil {
		e.config.Logger.Printf("Reconnect drain failed: %v", err)
	}
	e.Reconcile(e.ctx)
}

// Reconcile runs a last-write-wins sweep across every syncable
// collection and reports how many records it settled.
func (e *Engine) Reconcile(ctx context.Context) int {
	n := e.resolver.ReconcileAll(ctx)
	if n > 0 {
		e.notifier.ConflictsResolved(n)
	}
	return n
}

// publishState recomputes the observable state and fans it out.
func (e *Engine) publishState(ctx context.Context) {
	state := e.State(ctx)

	e.obsMu.Lock()
	observers := make([]func(State), len(e.observers))
	copy(observers, e.observers)
	e.obsMu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
