package vault

import (
	"fmt"

	"folio/internal/archive"
)

// Record is one flattened entity: its scalar fields plus an ordered list of
// child ids instead of nested items.
type Record struct {
	Entity   archive.Entity
	Children []string
}

// State is the normalized form of an archive graph: every entity lives in
// exactly one kind bucket, every non-root entity has exactly one parent, and
// the graph is acyclic and rooted at RootID.
type State struct {
	Entities map[archive.Kind]map[string]*Record
	Parent   map[string]string
	RootID   string
}

// NewState returns an empty normalized state.
func NewState() *State {
	entities := make(map[archive.Kind]map[string]*Record, len(archive.Kinds()))
	for _, kind := range archive.Kinds() {
		entities[kind] = make(map[string]*Record)
	}
	return &State{Entities: entities, Parent: make(map[string]string)}
}

// Normalize flattens a tree into a State. Ids must be globally unique.
func Normalize(root *archive.Entity) (*State, error) {
	state := NewState()
	if root == nil {
		return state, nil
	}
	if err := state.insertSubtree(root, ""); err != nil {
		return nil, err
	}
	state.RootID = root.ID
	return state, nil
}

// Denormalize rebuilds the tree from a State. It is the exact inverse of
// Normalize for any tree with unique ids.
func Denormalize(state *State) (*archive.Entity, error) {
	if state == nil || state.RootID == "" {
		return nil, nil
	}
	return state.rebuild(state.RootID)
}

// Clone deep-copies the state so history snapshots never share mutable data.
func (s *State) Clone() *State {
	clone := NewState()
	clone.RootID = s.RootID
	for kind, bucket := range s.Entities {
		for id, record := range bucket {
			clone.Entities[kind][id] = record.clone()
		}
	}
	for child, parent := range s.Parent {
		clone.Parent[child] = parent
	}
	return clone
}

// Lookup finds a record by id across all kind buckets.
func (s *State) Lookup(id string) (*Record, bool) {
	for _, bucket := range s.Entities {
		if record, ok := bucket[id]; ok {
			return record, true
		}
	}
	return nil, false
}

// Len counts all entities in the state.
func (s *State) Len() int {
	total := 0
	for _, bucket := range s.Entities {
		total += len(bucket)
	}
	return total
}

func (s *State) insertSubtree(e *archive.Entity, parentID string) error {
	if e.ID == "" {
		return fmt.Errorf("normalize: entity without id (kind %s)", e.Kind)
	}
	if _, exists := s.Lookup(e.ID); exists {
		return fmt.Errorf("normalize: duplicate id %s", e.ID)
	}
	bucket, ok := s.Entities[e.Kind]
	if !ok {
		return fmt.Errorf("normalize: unknown kind %q on %s", e.Kind, e.ID)
	}

	flat := e.Clone()
	flat.Items = nil
	record := &Record{Entity: *flat}
	for _, item := range e.Items {
		record.Children = append(record.Children, item.ID)
	}
	bucket[e.ID] = record
	if parentID != "" {
		s.Parent[e.ID] = parentID
	}

	for _, item := range e.Items {
		if err := s.insertSubtree(item, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) rebuild(id string) (*archive.Entity, error) {
	record, ok := s.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("denormalize: missing entity %s", id)
	}
	entity := record.Entity.Clone()
	for _, childID := range record.Children {
		child, err := s.rebuild(childID)
		if err != nil {
			return nil, err
		}
		entity.Items = append(entity.Items, child)
	}
	return entity, nil
}

// removeSubtree detaches id and all descendants from the state. The caller
// is responsible for removing the id from its parent's child list.
func (s *State) removeSubtree(id string) {
	record, ok := s.Lookup(id)
	if !ok {
		return
	}
	for _, childID := range record.Children {
		s.removeSubtree(childID)
	}
	delete(s.Entities[record.Entity.Kind], id)
	delete(s.Parent, id)
}

func (r *Record) clone() *Record {
	flat := r.Entity.Clone()
	cp := &Record{Entity: *flat}
	if r.Children != nil {
		cp.Children = append([]string(nil), r.Children...)
	}
	return cp
}
