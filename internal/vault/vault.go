package vault

import (
	"log/slog"
	"sync"

	"folio/internal/archive"
	"folio/internal/logging"
)

// Vault is the normalized in-memory entity store. All mutation goes through
// Dispatch; history is a bounded linear undo/redo stack of full-state
// snapshots. States handed out (to subscribers or via ExportRoot) are never
// mutated afterwards, so they are safe to read without locks.
type Vault struct {
	mu      sync.Mutex
	past    []*State
	present *State
	future  []*State
	limit   int

	subs    map[int]func(*State)
	nextSub int

	logger *slog.Logger
}

// New creates an empty vault with the given history bound.
func New(historyLimit int, logger *slog.Logger) *Vault {
	if historyLimit < 1 {
		historyLimit = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Vault{
		present: NewState(),
		limit:   historyLimit,
		subs:    make(map[int]func(*State)),
		logger:  logger.With(logging.String(logging.FieldComponent, "vault")),
	}
}

// Load replaces the vault contents with a normalized tree and clears history.
// Used to seed the vault from a finished ingest.
func (v *Vault) Load(root *archive.Entity) error {
	state, err := Normalize(root)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.past = nil
	v.future = nil
	v.present = state
	subs := v.snapshotSubs()
	present := v.present
	v.mu.Unlock()

	notify(subs, present)
	return nil
}

// Dispatch applies one action atomically. It returns false and leaves the
// state unchanged when a precondition fails; no panic, no partial mutation.
// On success the prior state is pushed onto the bounded past stack and any
// redo future is discarded.
func (v *Vault) Dispatch(action Action) bool {
	v.mu.Lock()
	next := v.present.Clone()
	if !apply(next, action) {
		v.mu.Unlock()
		v.logger.Debug("dispatch rejected", logging.String("action", actionName(action)))
		return false
	}

	v.past = append(v.past, v.present)
	if len(v.past) > v.limit {
		v.past = v.past[len(v.past)-v.limit:]
	}
	v.future = nil
	v.present = next
	subs := v.snapshotSubs()
	v.mu.Unlock()

	notify(subs, next)
	return true
}

// Undo restores the previous snapshot. Returns false when there is nothing
// to undo.
func (v *Vault) Undo() bool {
	v.mu.Lock()
	if len(v.past) == 0 {
		v.mu.Unlock()
		return false
	}
	prev := v.past[len(v.past)-1]
	v.past = v.past[:len(v.past)-1]
	v.future = append(v.future, v.present)
	v.present = prev
	subs := v.snapshotSubs()
	v.mu.Unlock()

	notify(subs, prev)
	return true
}

// Redo reapplies the most recently undone snapshot. Returns false when the
// future is empty.
func (v *Vault) Redo() bool {
	v.mu.Lock()
	if len(v.future) == 0 {
		v.mu.Unlock()
		return false
	}
	next := v.future[len(v.future)-1]
	v.future = v.future[:len(v.future)-1]
	v.past = append(v.past, v.present)
	v.present = next
	subs := v.snapshotSubs()
	v.mu.Unlock()

	notify(subs, next)
	return true
}

// GetEntity returns a detached copy of one entity (children not included),
// or nil when the id is unknown.
func (v *Vault) GetEntity(id string) *archive.Entity {
	v.mu.Lock()
	defer v.mu.Unlock()
	record, ok := v.present.Lookup(id)
	if !ok {
		return nil
	}
	return record.Entity.Clone()
}

// ExportRoot denormalizes the current state back into a tree.
func (v *Vault) ExportRoot() (*archive.Entity, error) {
	v.mu.Lock()
	present := v.present
	v.mu.Unlock()
	return Denormalize(present)
}

// State returns the current immutable snapshot.
func (v *Vault) State() *State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// Subscribe registers a change listener invoked with each new snapshot. The
// returned function unsubscribes.
func (v *Vault) Subscribe(fn func(*State)) func() {
	v.mu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

func (v *Vault) snapshotSubs() []func(*State) {
	subs := make([]func(*State), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(*State), state *State) {
	for _, fn := range subs {
		fn(state)
	}
}

func actionName(action Action) string {
	switch action.(type) {
	case UpdateField:
		return "update-field"
	case AddChild:
		return "add-child"
	case RemoveChild:
		return "remove-child"
	case ReorderChild:
		return "reorder-child"
	case BatchUpdate:
		return "batch-update"
	case ReloadTree:
		return "reload-tree"
	default:
		return "unknown"
	}
}
