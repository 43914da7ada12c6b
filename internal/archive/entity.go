package archive

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the closed set of entity types in the archive graph.
type Kind string

const (
	KindCollection Kind = "collection"
	KindManifest   Kind = "manifest"
	KindCanvas     Kind = "canvas"
	KindAnnotation Kind = "annotation"
)

// Kinds returns all entity kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindCollection, KindManifest, KindCanvas, KindAnnotation}
}

// Entity is one node of the hierarchical archive graph. The meaning of the
// optional fields depends on Kind: Width/Height are canvas dimensions,
// AssetID/Format describe an annotation's painted content.
type Entity struct {
	ID       string            `json:"id"`
	Kind     Kind              `json:"kind"`
	Label    string            `json:"label,omitempty"`
	Language string            `json:"language,omitempty"`
	Behavior []string          `json:"behavior,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	AssetID string `json:"assetId,omitempty"`
	Format  string `json:"format,omitempty"`

	Items []*Entity `json:"items,omitempty"`
}

// NewCollection constructs a collection with a fresh id.
func NewCollection(label string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindCollection, Label: label}
}

// NewManifest constructs a manifest with a fresh id.
func NewManifest(label string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindManifest, Label: label}
}

// NewCanvas constructs a canvas with the given pixel dimensions.
func NewCanvas(label string, width, height int) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindCanvas, Label: label, Width: width, Height: height}
}

// NewPaintingAnnotation constructs the annotation binding a canvas to its
// primary displayed content.
func NewPaintingAnnotation(assetID, format string) *Entity {
	return &Entity{ID: uuid.NewString(), Kind: KindAnnotation, AssetID: assetID, Format: format}
}

// CanAttach reports whether a child of the given kind may legally be attached
// under a parent of the given kind.
func CanAttach(parent, child Kind) bool {
	switch parent {
	case KindCollection:
		return child == KindCollection || child == KindManifest
	case KindManifest:
		return child == KindCanvas
	case KindCanvas:
		return child == KindAnnotation
	case KindAnnotation:
		return false
	default:
		return false
	}
}

// Attach appends child under e after validating the kind pairing.
func (e *Entity) Attach(child *Entity) error {
	if child == nil {
		return fmt.Errorf("attach: nil child")
	}
	if !CanAttach(e.Kind, child.Kind) {
		return fmt.Errorf("attach: %s may not contain %s", e.Kind, child.Kind)
	}
	e.Items = append(e.Items, child)
	return nil
}

// Walk visits e and every descendant depth-first in item order. Returning
// false from visit stops the walk.
func (e *Entity) Walk(visit func(*Entity) bool) bool {
	if e == nil {
		return true
	}
	if !visit(e) {
		return false
	}
	for _, item := range e.Items {
		if !item.Walk(visit) {
			return false
		}
	}
	return true
}

// Find returns the descendant (or e itself) with the given id, or nil.
func (e *Entity) Find(id string) *Entity {
	var found *Entity
	e.Walk(func(node *Entity) bool {
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Clone returns a deep copy of e and its descendants.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Behavior != nil {
		cp.Behavior = append([]string(nil), e.Behavior...)
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	if e.Items != nil {
		cp.Items = make([]*Entity, len(e.Items))
		for i, item := range e.Items {
			cp.Items[i] = item.Clone()
		}
	}
	return &cp
}

// Validate checks structural invariants over the whole subtree: known kinds,
// unique non-empty ids, and legal parent/child pairings.
func (e *Entity) Validate() error {
	seen := make(map[string]struct{})
	return e.validate(seen)
}

func (e *Entity) validate(seen map[string]struct{}) error {
	if e.ID == "" {
		return fmt.Errorf("validate: entity without id (kind %s)", e.Kind)
	}
	switch e.Kind {
	case KindCollection, KindManifest, KindCanvas, KindAnnotation:
	default:
		return fmt.Errorf("validate: unknown kind %q on %s", e.Kind, e.ID)
	}
	if _, dup := seen[e.ID]; dup {
		return fmt.Errorf("validate: duplicate id %s", e.ID)
	}
	seen[e.ID] = struct{}{}

	for _, item := range e.Items {
		if !CanAttach(e.Kind, item.Kind) {
			return fmt.Errorf("validate: %s %s may not contain %s %s", e.Kind, e.ID, item.Kind, item.ID)
		}
		if err := item.validate(seen); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of entities of the given kind in the subtree.
func (e *Entity) Count(kind Kind) int {
	total := 0
	e.Walk(func(node *Entity) bool {
		if node.Kind == kind {
			total++
		}
		return true
	})
	return total
}
