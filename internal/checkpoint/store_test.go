package checkpoint_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"folio/internal/checkpoint"
	"folio/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCheckpoints(t, cfg)
	ctx := context.Background()

	created, err := store.Create(ctx, "op-1", "letters", 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != checkpoint.StatusInProgress || created.TotalFiles != 10 {
		t.Fatalf("unexpected checkpoint: %+v", created)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestMarkFileCompletedUpdatesCounters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCheckpoints(t, cfg)
	ctx := context.Background()

	if _, err := store.Create(ctx, "op-1", "letters", 4); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, path := range []string{"a.jpg", "b.jpg"} {
		if err := store.MarkFileCompleted(ctx, "op-1", path); err != nil {
			t.Fatalf("MarkFileCompleted: %v", err)
		}
	}
	// Re-marking is idempotent.
	if err := store.MarkFileCompleted(ctx, "op-1", "a.jpg"); err != nil {
		t.Fatalf("MarkFileCompleted repeat: %v", err)
	}

	cp, err := store.Get(ctx, "op-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cp.ProcessedFiles != 2 {
		t.Fatalf("ProcessedFiles = %d, want 2", cp.ProcessedFiles)
	}
	if cp.Progress != 50 {
		t.Fatalf("Progress = %v, want 50", cp.Progress)
	}

	completed, err := store.CompletedFiles(ctx, "op-1")
	if err != nil {
		t.Fatalf("CompletedFiles: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed files, got %d", len(completed))
	}
	if _, ok := completed["a.jpg"]; !ok {
		t.Fatal("a.jpg should be completed")
	}
}

func TestFindBySourceSkipsCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCheckpoints(t, cfg)
	ctx := context.Background()

	if _, err := store.Create(ctx, "op-old", "letters", 5); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetStatus(ctx, "op-old", checkpoint.StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := store.Create(ctx, "op-new", "letters", 5); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.SetStatus(ctx, "op-new", checkpoint.StatusCancelled); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	found, err := store.FindBySource(ctx, "letters")
	if err != nil {
		t.Fatalf("FindBySource: %v", err)
	}
	if found == nil || found.ID != "op-new" {
		t.Fatalf("expected op-new, got %+v", found)
	}
	if !found.Resumable() {
		t.Fatal("cancelled checkpoint should be resumable")
	}

	none, err := store.FindBySource(ctx, "unknown-source")
	if err != nil {
		t.Fatalf("FindBySource: %v", err)
	}
	if none != nil {
		t.Fatal("expected nil for unknown source")
	}
}

func TestDeleteCascadesFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCheckpoints(t, cfg)
	ctx := context.Background()

	if _, err := store.Create(ctx, "op-1", "letters", 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.MarkFileCompleted(ctx, "op-1", "a.jpg"); err != nil {
		t.Fatalf("MarkFileCompleted: %v", err)
	}
	if err := store.Delete(ctx, "op-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	completed, err := store.CompletedFiles(ctx, "op-1")
	if err != nil {
		t.Fatalf("CompletedFiles: %v", err)
	}
	if len(completed) != 0 {
		t.Fatal("file records should cascade on delete")
	}
}

func TestPruneByCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCheckpoints(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Create(ctx, fmt.Sprintf("op-%d", i), "letters", 1); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	removed, err := store.Prune(ctx, 24*time.Hour, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(remaining))
	}
}

func TestPersistsAcrossOpens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store := testsupport.MustOpenCheckpoints(t, cfg)
	if _, err := store.Create(ctx, "op-1", "letters", 3); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.MarkFileCompleted(ctx, "op-1", "a.jpg"); err != nil {
		t.Fatalf("MarkFileCompleted: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenCheckpoints(t, cfg)
	cp, err := reopened.Get(ctx, "op-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if cp == nil || cp.ProcessedFiles != 1 {
		t.Fatalf("checkpoint should survive restart: %+v", cp)
	}
}
