package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"folio/internal/archive"
	"folio/internal/vault"
)

func loadedVault(t *testing.T) (*vault.Vault, *archive.Entity) {
	t.Helper()
	root := sampleTree(t)
	v := vault.New(10, nil)
	require.NoError(t, v.Load(root))
	return v, root
}

func TestDispatchUpdateField(t *testing.T) {
	v, root := loadedVault(t)

	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "Renamed"}))
	require.Equal(t, "Renamed", v.GetEntity(root.ID).Label)
}

func TestDispatchPreconditionFailures(t *testing.T) {
	v, root := loadedVault(t)
	before, err := v.ExportRoot()
	require.NoError(t, err)

	cases := []vault.Action{
		vault.UpdateField{ID: "missing", Field: "label", Value: "x"},
		vault.UpdateField{ID: root.ID, Field: "unknown-field", Value: "x"},
		vault.UpdateField{ID: root.ID, Field: "label", Value: 42},
		vault.UpdateField{ID: root.ID, Field: "width", Value: 10}, // width only on canvases
		vault.AddChild{ParentID: root.ID, Child: archive.NewCanvas("c", 1, 1), Index: -1},
		vault.AddChild{ParentID: "missing", Child: archive.NewManifest("m"), Index: -1},
		vault.AddChild{ParentID: root.ID, Child: nil, Index: -1},
		vault.RemoveChild{ParentID: root.ID, ChildID: "missing"},
		vault.ReorderChild{ParentID: root.ID, From: 0, To: 99},
	}
	for _, action := range cases {
		require.False(t, v.Dispatch(action), "action %#v should be rejected", action)
	}

	after, err := v.ExportRoot()
	require.NoError(t, err)
	require.Equal(t, before, after, "rejected dispatches must not change state")
}

func TestDispatchAddRemoveReorder(t *testing.T) {
	v, root := loadedVault(t)
	manifestID := root.Items[0].ID

	extra := archive.NewCanvas("inserted", 100, 100)
	require.True(t, v.Dispatch(vault.AddChild{ParentID: manifestID, Child: extra, Index: 0}))

	exported, err := v.ExportRoot()
	require.NoError(t, err)
	require.Equal(t, extra.ID, exported.Items[0].Items[0].ID)
	require.Len(t, exported.Items[0].Items, 4)

	require.True(t, v.Dispatch(vault.ReorderChild{ParentID: manifestID, From: 0, To: 3}))
	exported, err = v.ExportRoot()
	require.NoError(t, err)
	require.Equal(t, extra.ID, exported.Items[0].Items[3].ID)

	require.True(t, v.Dispatch(vault.RemoveChild{ParentID: manifestID, ChildID: extra.ID}))
	exported, err = v.ExportRoot()
	require.NoError(t, err)
	require.Len(t, exported.Items[0].Items, 3)
	require.Nil(t, v.GetEntity(extra.ID), "removed subtree ids must be gone")
}

func TestDispatchBatchUpdateAtomic(t *testing.T) {
	v, root := loadedVault(t)
	before, err := v.ExportRoot()
	require.NoError(t, err)

	// Second update targets a missing id, so the whole batch must roll back.
	ok := v.Dispatch(vault.BatchUpdate{Updates: []vault.UpdateField{
		{ID: root.ID, Field: "label", Value: "Half Applied"},
		{ID: "missing", Field: "label", Value: "x"},
	}})
	require.False(t, ok)

	after, err := v.ExportRoot()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestUndoRedoInverseLaw(t *testing.T) {
	v, root := loadedVault(t)

	snapshot := func() *archive.Entity {
		exported, err := v.ExportRoot()
		require.NoError(t, err)
		return exported
	}

	initial := snapshot()
	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "One"}))
	afterOne := snapshot()
	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "Two"}))
	afterTwo := snapshot()

	require.True(t, v.Undo())
	require.Equal(t, afterOne, snapshot())
	require.True(t, v.Undo())
	require.Equal(t, initial, snapshot())

	require.True(t, v.Redo())
	require.Equal(t, afterOne, snapshot())
	require.True(t, v.Redo())
	require.Equal(t, afterTwo, snapshot())

	require.False(t, v.Redo(), "future exhausted")
}

func TestNewActionAfterUndoDiscardsFuture(t *testing.T) {
	v, root := loadedVault(t)

	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "One"}))
	require.True(t, v.Undo())
	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "Branch"}))

	require.False(t, v.Redo(), "history is strictly linear")
}

func TestHistoryBounded(t *testing.T) {
	root := sampleTree(t)
	v := vault.New(3, nil)
	require.NoError(t, v.Load(root))

	for i := 0; i < 10; i++ {
		require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "x"}))
	}

	undos := 0
	for v.Undo() {
		undos++
	}
	require.Equal(t, 3, undos, "past stack must honor the bound")
}

func TestRejectedDispatchDoesNotGrowHistory(t *testing.T) {
	v, _ := loadedVault(t)
	require.False(t, v.Dispatch(vault.UpdateField{ID: "missing", Field: "label", Value: "x"}))
	require.False(t, v.Undo(), "rejected dispatch must not create an undo step")
}

func TestReloadTree(t *testing.T) {
	v, _ := loadedVault(t)

	replacement := archive.NewCollection("Replacement")
	require.True(t, v.Dispatch(vault.ReloadTree{Root: replacement}))

	exported, err := v.ExportRoot()
	require.NoError(t, err)
	require.Equal(t, "Replacement", exported.Label)

	// Reload is undoable like any other action.
	require.True(t, v.Undo())
	exported, err = v.ExportRoot()
	require.NoError(t, err)
	require.Equal(t, "Letters", exported.Label)
}

func TestSubscribeNotifiesAndUnsubscribes(t *testing.T) {
	v, root := loadedVault(t)

	calls := 0
	unsubscribe := v.Subscribe(func(state *vault.State) {
		calls++
		if state.Len() == 0 {
			t.Error("subscriber received empty state")
		}
	})

	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "x"}))
	require.Equal(t, 1, calls)

	unsubscribe()
	require.True(t, v.Dispatch(vault.UpdateField{ID: root.ID, Field: "label", Value: "y"}))
	require.Equal(t, 1, calls, "unsubscribed listener must not fire")
}
