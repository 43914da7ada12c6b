package vault

import (
	"folio/internal/archive"
)

// Action is the closed set of mutations the dispatcher accepts. Each variant
// carries only the data needed to apply it; implementations live in apply.go.
type Action interface {
	isAction()
}

// UpdateField sets one named field on one entity.
type UpdateField struct {
	ID    string
	Field string
	Value any
}

// AddChild attaches a new entity (possibly a whole subtree) under ParentID.
// Index -1 appends; otherwise the child is inserted at that position.
type AddChild struct {
	ParentID string
	Child    *archive.Entity
	Index    int
}

// RemoveChild detaches ChildID and its subtree from ParentID.
type RemoveChild struct {
	ParentID string
	ChildID  string
}

// ReorderChild moves the child at From to To within ParentID's item list.
type ReorderChild struct {
	ParentID string
	From     int
	To       int
}

// BatchUpdate applies several field updates as one atomic, singly-undoable
// step.
type BatchUpdate struct {
	Updates []UpdateField
}

// ReloadTree wholesale-replaces the state with a freshly normalized tree.
// Used after an ingest merge or a structural repair pass.
type ReloadTree struct {
	Root *archive.Entity
}

func (UpdateField) isAction()  {}
func (AddChild) isAction()     {}
func (RemoveChild) isAction()  {}
func (ReorderChild) isAction() {}
func (BatchUpdate) isAction()  {}
func (ReloadTree) isAction()   {}
