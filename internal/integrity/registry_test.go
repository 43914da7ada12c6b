package integrity_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"folio/internal/testsupport"
)

func TestRegisterFirstIsCanonical(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	handle := testsupport.NewHandle("a.jpg", []byte("identical bytes"))
	first, err := registry.RegisterFile(ctx, handle, "entity-1", "a.jpg")
	if err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if first.IsDuplicate {
		t.Fatal("first registration must not be a duplicate")
	}
	if first.Fingerprint.Hash == "" || first.Fingerprint.Size != int64(len("identical bytes")) {
		t.Fatalf("unexpected fingerprint: %+v", first.Fingerprint)
	}
}

func TestRegisterIdenticalContentIsDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	payload := []byte("identical bytes")
	first, err := registry.RegisterFile(ctx, testsupport.NewHandle("a.jpg", payload), "entity-1", "a.jpg")
	if err != nil {
		t.Fatalf("first RegisterFile: %v", err)
	}

	second, err := registry.RegisterFile(ctx, testsupport.NewHandle("a_copy.jpg", payload), "entity-2", "a_copy.jpg")
	if err != nil {
		t.Fatalf("second RegisterFile: %v", err)
	}
	if !second.IsDuplicate {
		t.Fatal("identical content must be flagged duplicate")
	}
	if second.ExistingEntityID != "entity-1" {
		t.Fatalf("duplicate should reference canonical entity, got %q", second.ExistingEntityID)
	}
	if second.Fingerprint.Hash != first.Fingerprint.Hash {
		t.Fatal("both registrations must share one canonical fingerprint")
	}
}

func TestRegisterDistinctContentNeverCollides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	a, err := registry.RegisterFile(ctx, testsupport.NewHandle("a.jpg", []byte("content a")), "entity-a", "a.jpg")
	if err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	b, err := registry.RegisterFile(ctx, testsupport.NewHandle("b.jpg", []byte("content b")), "entity-b", "b.jpg")
	if err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if a.Fingerprint.Hash == b.Fingerprint.Hash {
		t.Fatal("distinct contents must not collide")
	}
	if a.IsDuplicate || b.IsDuplicate {
		t.Fatal("distinct contents must not be flagged duplicate")
	}
}

func TestRegisterIdempotentForSameEntity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	handle := testsupport.NewHandle("a.jpg", []byte("payload"))
	if _, err := registry.RegisterFile(ctx, handle, "entity-1", "a.jpg"); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	again, err := registry.RegisterFile(ctx, handle, "entity-1", "a.jpg")
	if err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if again.IsDuplicate {
		t.Fatal("re-registration by the canonical entity is not a duplicate")
	}
}

func TestRegisterConcurrentDistinctContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("file_%02d.jpg", i)
			handle := testsupport.NewHandle(name, []byte(fmt.Sprintf("content %d", i)))
			result, err := registry.RegisterFile(ctx, handle, fmt.Sprintf("entity-%d", i), name)
			if err != nil {
				errs <- err
				return
			}
			if result.IsDuplicate {
				errs <- fmt.Errorf("distinct content %d flagged duplicate", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	count, err := registry.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d fingerprints, got %d", n, count)
	}
}

func TestFingerprintsPersistAcrossOpens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	registry := testsupport.MustOpenRegistry(t, cfg)
	if _, err := registry.RegisterFile(ctx, testsupport.NewHandle("a.jpg", []byte("kept")), "entity-1", "a.jpg"); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if err := registry.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenRegistry(t, cfg)
	result, err := reopened.RegisterFile(ctx, testsupport.NewHandle("b.jpg", []byte("kept")), "entity-2", "b.jpg")
	if err != nil {
		t.Fatalf("RegisterFile after reopen: %v", err)
	}
	if !result.IsDuplicate || result.ExistingEntityID != "entity-1" {
		t.Fatalf("fingerprints should persist across opens: %+v", result)
	}
}
