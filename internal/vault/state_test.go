package vault_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"folio/internal/archive"
	"folio/internal/vault"
)

func sampleTree(t *testing.T) *archive.Entity {
	t.Helper()
	root := archive.NewCollection("Letters")
	root.Metadata = map[string]string{"repository": "City Archive"}
	manifest := archive.NewManifest("1850 Correspondence")
	manifest.Language = "en"
	for i := 0; i < 3; i++ {
		canvas := archive.NewCanvas("page", 800, 1200)
		anno := archive.NewPaintingAnnotation("asset", "image/jpeg")
		require.NoError(t, canvas.Attach(anno))
		require.NoError(t, manifest.Attach(canvas))
	}
	require.NoError(t, root.Attach(manifest))
	return root
}

func TestNormalizeBucketsAndParents(t *testing.T) {
	root := sampleTree(t)
	state, err := vault.Normalize(root)
	require.NoError(t, err)

	require.Equal(t, root.ID, state.RootID)
	require.Len(t, state.Entities[archive.KindCollection], 1)
	require.Len(t, state.Entities[archive.KindManifest], 1)
	require.Len(t, state.Entities[archive.KindCanvas], 3)
	require.Len(t, state.Entities[archive.KindAnnotation], 3)

	manifest := root.Items[0]
	require.Equal(t, root.ID, state.Parent[manifest.ID])
	for _, canvas := range manifest.Items {
		require.Equal(t, manifest.ID, state.Parent[canvas.ID])
	}
	_, hasRootParent := state.Parent[root.ID]
	require.False(t, hasRootParent, "root must have no parent")
}

func TestNormalizeRejectsDuplicateIDs(t *testing.T) {
	root := sampleTree(t)
	root.Items[0].Items[0].ID = root.ID
	_, err := vault.Normalize(root)
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	root := sampleTree(t)
	state, err := vault.Normalize(root)
	require.NoError(t, err)

	rebuilt, err := vault.Denormalize(state)
	require.NoError(t, err)
	require.Equal(t, root, rebuilt)
}

func TestRoundTripEmpty(t *testing.T) {
	state, err := vault.Normalize(nil)
	require.NoError(t, err)
	rebuilt, err := vault.Denormalize(state)
	require.NoError(t, err)
	require.Nil(t, rebuilt)
}

func TestCloneIsolation(t *testing.T) {
	root := sampleTree(t)
	state, err := vault.Normalize(root)
	require.NoError(t, err)

	clone := state.Clone()
	record, ok := clone.Lookup(root.ID)
	require.True(t, ok)
	record.Entity.Label = "changed"
	record.Children = nil

	original, ok := state.Lookup(root.ID)
	require.True(t, ok)
	require.Equal(t, "Letters", original.Entity.Label)
	require.Len(t, original.Children, 1)
}
