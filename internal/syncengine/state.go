package syncengine

import "fmt"

// Mode is the coarse sync status shown to the user.
type Mode int

const (
	// ModeOffline means mutations are being captured locally only.
	ModeOffline Mode = iota
	// ModeSyncing means the outbox still holds pending mutations.
	ModeSyncing
	// ModeSynced means the outbox is empty and the network is reachable.
	ModeSynced
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeOffline:
		return "offline"
	case ModeSyncing:
		return "syncing"
	case ModeSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// State is the observable sync state: offline, syncing N items, or all
// synced. It is recomputed after every outbox size change and every
// connectivity transition.
type State struct {
	Mode    Mode
	Pending int
}

// String renders the state the way the status widget shows it.
func (s State) String() string {
	switch s.Mode {
	case ModeOffline:
		if s.Pending > 0 {
			return fmt.Sprintf("offline (%d pending)", s.Pending)
		}
		return "offline"
	case ModeSyncing:
		return fmt.Sprintf("syncing %d item(s)", s.Pending)
	default:
		return "all synced"
	}
}

// Notifier receives the user-visible notices the sync core emits: a
// one-time failure toast when an entry exhausts its retries, and an
// aggregate count after a reconciliation sweep. Implementations must not
// block.
type Notifier interface {
	// SyncFailed reports that a mutation was discarded after the retry
	// ceiling, naming the operation that was lost.
	SyncFailed(op, collection string)

	// ConflictsResolved reports the aggregate outcome of a sweep.
	// Never called with n == 0.
	ConflictsResolved(n int)
}

// nopNotifier drops all notices.
type nopNotifier struct{}

func (nopNotifier) SyncFailed(op, collection string) {}
func (nopNotifier) ConflictsResolved(n int)          {}
