package derivatives_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"folio/internal/derivatives"
	"folio/internal/testsupport"
)

func TestGenerateRendersRequestedSizes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	handle := testsupport.ImageHandle(t, "page_001.png", 1200, 800)
	blobs, err := pool.Generate(context.Background(), "asset-1", handle, derivatives.SizesFromPx([]int{256, 512}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(blobs) != 2 {
		t.Fatalf("expected 2 blobs, got %d", len(blobs))
	}

	img := decodeJPEG(t, blobs["256"])
	if w := img.Bounds().Dx(); w > 256 {
		t.Fatalf("256 rendition too wide: %d", w)
	}
	img = decodeJPEG(t, blobs["512"])
	if w := img.Bounds().Dx(); w > 512 || w <= 256 {
		t.Fatalf("512 rendition has unexpected width %d", w)
	}
}

func TestGenerateNeverUpscales(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	handle := testsupport.ImageHandle(t, "small.png", 100, 80)
	blobs, err := pool.Generate(context.Background(), "asset-1", handle, derivatives.SizesFromPx([]int{512}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	img := decodeJPEG(t, blobs["512"])
	if img.Bounds().Dx() != 100 {
		t.Fatalf("small image should pass through at original size, got %d", img.Bounds().Dx())
	}
}

func TestGeneratePyramidLevels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.TilePx = 256
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	handle := testsupport.ImageHandle(t, "large.png", 1024, 1024)
	blobs, err := pool.GeneratePyramid(context.Background(), "asset-1", handle)
	if err != nil {
		t.Fatalf("GeneratePyramid: %v", err)
	}
	// 1024 -> 512 -> 256: three levels.
	if len(blobs) != 3 {
		t.Fatalf("expected 3 pyramid levels, got %d", len(blobs))
	}
	deepest := decodeJPEG(t, blobs["level-2"])
	if deepest.Bounds().Dx() > 256 {
		t.Fatalf("deepest level should fit tile size, got %d", deepest.Bounds().Dx())
	}
}

func TestGenerateBadImageFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	handle := testsupport.NewHandle("broken.png", []byte("not an image"))
	if _, err := pool.Generate(context.Background(), "asset-1", handle, derivatives.SizesFromPx([]int{256})); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGenerateHonorsContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handle := testsupport.ImageHandle(t, "page.png", 64, 64)
	_, err := pool.Generate(ctx, "asset-1", handle, derivatives.SizesFromPx([]int{32}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnqueueDeliversCallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	handle := testsupport.ImageHandle(t, "page.png", 128, 128)
	var wg sync.WaitGroup
	wg.Add(1)
	var got map[string][]byte
	var gotErr error
	if _, err := pool.Enqueue("asset-1", handle, derivatives.SizesFromPx([]int{64}), func(blobs map[string][]byte, err error) {
		got, gotErr = blobs, err
		wg.Done()
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitWithTimeout(t, &wg)
	if gotErr != nil {
		t.Fatalf("background generation failed: %v", gotErr)
	}
	if len(got) != 1 {
		t.Fatalf("expected one background rendition, got %d", len(got))
	}
}

func TestEnqueueFailureIsIsolated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	defer pool.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	if _, err := pool.Enqueue("asset-bad", testsupport.NewHandle("bad.png", []byte("junk")), derivatives.SizesFromPx([]int{64}), func(_ map[string][]byte, err error) {
		gotErr = err
		wg.Done()
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitWithTimeout(t, &wg)
	if gotErr == nil {
		t.Fatal("expected per-asset failure in callback")
	}

	// The pool still serves other work after the failure.
	good := testsupport.ImageHandle(t, "good.png", 64, 64)
	if _, err := pool.Generate(context.Background(), "asset-2", good, derivatives.SizesFromPx([]int{32})); err != nil {
		t.Fatalf("pool should survive a failed asset: %v", err)
	}
}

func TestCloseRejectsNewWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pool := derivatives.NewPool(cfg, nil)
	pool.Close()

	handle := testsupport.ImageHandle(t, "page.png", 64, 64)
	if _, err := pool.Generate(context.Background(), "asset-1", handle, derivatives.SizesFromPx([]int{32})); !errors.Is(err, derivatives.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if _, err := pool.Enqueue("asset-1", handle, nil, nil); !errors.Is(err, derivatives.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed from Enqueue, got %v", err)
	}
}

func TestCloseDrainsBackgroundQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.WorkerCount = 1
	pool := derivatives.NewPool(cfg, nil)

	handle := testsupport.ImageHandle(t, "page.png", 128, 128)
	const jobs = 8
	var mu sync.Mutex
	rendered, failed := 0, 0
	for i := 0; i < jobs; i++ {
		if _, err := pool.Enqueue("asset-1", handle, derivatives.SizesFromPx([]int{64}), func(blobs map[string][]byte, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil || len(blobs) == 0 {
				failed++
				return
			}
			rendered++
		}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	pool.Close()

	mu.Lock()
	defer mu.Unlock()
	if failed != 0 {
		t.Fatalf("%d queued renditions were dropped", failed)
	}
	if rendered != jobs {
		t.Fatalf("expected %d renditions after Close, got %d", jobs, rendered)
	}
}

func TestAbortDiscardsQueuedWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.WorkerCount = 1
	pool := derivatives.NewPool(cfg, nil)

	handle := testsupport.ImageHandle(t, "page.png", 128, 128)
	const jobs = 4
	var wg sync.WaitGroup
	wg.Add(jobs)
	var mu sync.Mutex
	outcomes := 0
	for i := 0; i < jobs; i++ {
		if _, err := pool.Enqueue("asset-1", handle, derivatives.SizesFromPx([]int{64}), func(_ map[string][]byte, _ error) {
			mu.Lock()
			outcomes++
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	pool.Abort()
	waitWithTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if outcomes != jobs {
		t.Fatalf("every callback must still fire on abort, got %d of %d", outcomes, jobs)
	}
	handle = testsupport.ImageHandle(t, "late.png", 64, 64)
	if _, err := pool.Enqueue("asset-2", handle, nil, nil); !errors.Is(err, derivatives.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed after Abort, got %v", err)
	}
}

func TestThumbnailSynchronous(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handle := testsupport.ImageHandle(t, "page.png", 640, 480)
	blob, err := derivatives.Thumbnail(handle, cfg.Ingest.ThumbnailPx)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img := decodeJPEG(t, blob)
	if img.Bounds().Dx() > cfg.Ingest.ThumbnailPx {
		t.Fatalf("thumbnail exceeds bound: %d", img.Bounds().Dx())
	}
}

func decodeJPEG(t *testing.T, blob []byte) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("decode rendition: %v", err)
	}
	return img
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for background work")
	}
}
