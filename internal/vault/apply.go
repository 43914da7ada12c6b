package vault

import (
	"folio/internal/archive"
)

// apply mutates state in place and reports whether every precondition held.
// The caller always passes a fresh clone, so a false return simply discards
// the clone; the visible state is never half-applied.
func apply(state *State, action Action) bool {
	switch a := action.(type) {
	case UpdateField:
		return applyUpdateField(state, a)
	case AddChild:
		return applyAddChild(state, a)
	case RemoveChild:
		return applyRemoveChild(state, a)
	case ReorderChild:
		return applyReorderChild(state, a)
	case BatchUpdate:
		for _, update := range a.Updates {
			if !applyUpdateField(state, update) {
				return false
			}
		}
		return true
	case ReloadTree:
		return applyReloadTree(state, a)
	default:
		return false
	}
}

func applyUpdateField(state *State, a UpdateField) bool {
	record, ok := state.Lookup(a.ID)
	if !ok {
		return false
	}
	switch a.Field {
	case "label":
		value, ok := a.Value.(string)
		if !ok {
			return false
		}
		record.Entity.Label = value
	case "language":
		value, ok := a.Value.(string)
		if !ok {
			return false
		}
		record.Entity.Language = value
	case "behavior":
		value, ok := a.Value.([]string)
		if !ok {
			return false
		}
		record.Entity.Behavior = append([]string(nil), value...)
	case "metadata":
		value, ok := a.Value.(map[string]string)
		if !ok {
			return false
		}
		metadata := make(map[string]string, len(value))
		for k, v := range value {
			metadata[k] = v
		}
		record.Entity.Metadata = metadata
	case "width":
		value, ok := a.Value.(int)
		if !ok || record.Entity.Kind != archive.KindCanvas {
			return false
		}
		record.Entity.Width = value
	case "height":
		value, ok := a.Value.(int)
		if !ok || record.Entity.Kind != archive.KindCanvas {
			return false
		}
		record.Entity.Height = value
	case "assetId":
		value, ok := a.Value.(string)
		if !ok || record.Entity.Kind != archive.KindAnnotation {
			return false
		}
		record.Entity.AssetID = value
	case "format":
		value, ok := a.Value.(string)
		if !ok || record.Entity.Kind != archive.KindAnnotation {
			return false
		}
		record.Entity.Format = value
	default:
		return false
	}
	return true
}

func applyAddChild(state *State, a AddChild) bool {
	if a.Child == nil {
		return false
	}
	parent, ok := state.Lookup(a.ParentID)
	if !ok {
		return false
	}
	if !archive.CanAttach(parent.Entity.Kind, a.Child.Kind) {
		return false
	}
	if a.Index < -1 || a.Index > len(parent.Children) {
		return false
	}
	if err := state.insertSubtree(a.Child, a.ParentID); err != nil {
		return false
	}

	if a.Index == -1 || a.Index == len(parent.Children) {
		parent.Children = append(parent.Children, a.Child.ID)
		return true
	}
	parent.Children = append(parent.Children, "")
	copy(parent.Children[a.Index+1:], parent.Children[a.Index:])
	parent.Children[a.Index] = a.Child.ID
	return true
}

func applyRemoveChild(state *State, a RemoveChild) bool {
	parent, ok := state.Lookup(a.ParentID)
	if !ok {
		return false
	}
	index := -1
	for i, childID := range parent.Children {
		if childID == a.ChildID {
			index = i
			break
		}
	}
	if index == -1 {
		return false
	}
	parent.Children = append(parent.Children[:index], parent.Children[index+1:]...)
	state.removeSubtree(a.ChildID)
	return true
}

func applyReorderChild(state *State, a ReorderChild) bool {
	parent, ok := state.Lookup(a.ParentID)
	if !ok {
		return false
	}
	n := len(parent.Children)
	if a.From < 0 || a.From >= n || a.To < 0 || a.To >= n {
		return false
	}
	if a.From == a.To {
		return true
	}
	moved := parent.Children[a.From]
	children := append(parent.Children[:a.From], parent.Children[a.From+1:]...)
	children = append(children, "")
	copy(children[a.To+1:], children[a.To:])
	children[a.To] = moved
	parent.Children = children
	return true
}

func applyReloadTree(state *State, a ReloadTree) bool {
	fresh, err := Normalize(a.Root)
	if err != nil {
		return false
	}
	*state = *fresh
	return true
}
