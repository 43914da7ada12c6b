package derivatives

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"folio/internal/config"
	"folio/internal/filetree"
	"folio/internal/logging"
)

// Size names one derivative rendition by tag and bounding edge in pixels.
type Size struct {
	Tag   string
	MaxPx int
}

// SizesFromPx builds Size values tagged by their pixel bound.
func SizesFromPx(pxs []int) []Size {
	sizes := make([]Size, 0, len(pxs))
	for _, px := range pxs {
		sizes = append(sizes, Size{Tag: strconv.Itoa(px), MaxPx: px})
	}
	return sizes
}

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("derivative pool closed")

type taskKind int

const (
	taskSizes taskKind = iota
	taskPyramid
)

type task struct {
	opID    string
	kind    taskKind
	assetID string
	handle  filetree.FileHandle
	sizes   []Size
	tilePx  int

	ctx    context.Context
	result chan taskResult
}

type taskResult struct {
	blobs map[string][]byte
	err   error
}

// Pool runs CPU-bound image work on a fixed number of background workers.
// Excess requests queue on a bounded channel, so submission exerts
// backpressure instead of spawning unbounded work. Foreground requests
// (Generate, GeneratePyramid) are served before queued background work.
type Pool struct {
	logger *slog.Logger
	tilePx int

	foreground chan *task
	background chan *task
	closed     chan struct{} // intake stopped; new submissions are rejected
	quit       chan struct{} // workers must exit

	mu      sync.Mutex
	pending map[string]context.CancelFunc

	wg        sync.WaitGroup
	jobs      sync.WaitGroup // accepted background work not yet delivered
	closeOnce sync.Once
}

// NewPool starts cfg.Ingest.WorkerCount workers.
func NewPool(cfg *config.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pool{
		logger:     logger.With(logging.String(logging.FieldComponent, "derivatives")),
		tilePx:     cfg.Ingest.TilePx,
		foreground: make(chan *task, cfg.Ingest.QueueCapacity),
		background: make(chan *task, cfg.Ingest.QueueCapacity),
		closed:     make(chan struct{}),
		quit:       make(chan struct{}),
		pending:    make(map[string]context.CancelFunc),
	}

	workers := cfg.Ingest.WorkerCount
	if workers < 1 {
		workers = 1
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Generate renders one blob per requested size. It blocks until a worker
// finishes, the context is cancelled, or the operation is cancelled by id.
func (p *Pool) Generate(ctx context.Context, assetID string, handle filetree.FileHandle, sizes []Size) (map[string][]byte, error) {
	return p.run(ctx, &task{
		opID:    uuid.NewString(),
		kind:    taskSizes,
		assetID: assetID,
		handle:  handle,
		sizes:   append([]Size(nil), sizes...),
	})
}

// GeneratePyramid renders the multi-resolution tile pyramid for an asset.
func (p *Pool) GeneratePyramid(ctx context.Context, assetID string, handle filetree.FileHandle) (map[string][]byte, error) {
	return p.run(ctx, &task{
		opID:    uuid.NewString(),
		kind:    taskPyramid,
		assetID: assetID,
		handle:  handle,
		tilePx:  p.tilePx,
	})
}

// Enqueue schedules low-priority background work. The callback runs on a
// worker goroutine once the request is processed; failures are delivered to
// the callback, never escalated. Returns the operation id for Cancel.
func (p *Pool) Enqueue(assetID string, handle filetree.FileHandle, sizes []Size, done func(map[string][]byte, error)) (string, error) {
	opCtx, cancel := context.WithCancel(context.Background())
	t := &task{
		opID:    uuid.NewString(),
		kind:    taskSizes,
		assetID: assetID,
		handle:  handle,
		sizes:   append([]Size(nil), sizes...),
		ctx:     opCtx,
		result:  make(chan taskResult, 1),
	}
	p.track(t.opID, cancel)

	// Closed wins over a ready queue slot.
	select {
	case <-p.closed:
		p.untrack(t.opID)
		cancel()
		return "", ErrPoolClosed
	default:
	}

	p.jobs.Add(1)
	select {
	case <-p.closed:
		p.jobs.Done()
		p.untrack(t.opID)
		cancel()
		return "", ErrPoolClosed
	case p.background <- t:
	}

	go func() {
		defer p.jobs.Done()
		defer p.untrack(t.opID)
		defer cancel()
		select {
		case <-p.quit:
			if done != nil {
				done(nil, ErrPoolClosed)
			}
		case res := <-t.result:
			if done != nil {
				done(res.blobs, res.err)
			}
		}
	}()
	return t.opID, nil
}

// Cancel aborts the in-flight or queued operation with the given id. Other
// operations are unaffected.
func (p *Pool) Cancel(opID string) {
	p.mu.Lock()
	cancel, ok := p.pending[opID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close stops intake, finishes every already-accepted background operation,
// then shuts the workers down. Queued work is delivered, never dropped.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.jobs.Wait()
		close(p.quit)
		p.wg.Wait()
	})
}

// Abort stops intake and cancels all pending operations without draining the
// background queue. Callbacks for undelivered work receive ErrPoolClosed.
func (p *Pool) Abort() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.mu.Lock()
		for _, cancel := range p.pending {
			cancel()
		}
		p.pending = make(map[string]context.CancelFunc)
		p.mu.Unlock()
		close(p.quit)
		p.wg.Wait()
	})
}

// Thumbnail is the synchronous fast path for first paint: it bypasses the
// queue entirely and renders a single small size on the caller's goroutine.
func Thumbnail(handle filetree.FileHandle, maxPx int) ([]byte, error) {
	img, err := decode(handle)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(scaleDown(img, maxPx))
}

func (p *Pool) run(ctx context.Context, t *task) (map[string][]byte, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.ctx = opCtx
	t.result = make(chan taskResult, 1)

	p.track(t.opID, cancel)
	defer p.untrack(t.opID)

	// Closed wins over a ready queue slot.
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-opCtx.Done():
		return nil, opCtx.Err()
	case p.foreground <- t:
	}

	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-opCtx.Done():
		return nil, opCtx.Err()
	case res := <-t.result:
		return res.blobs, res.err
	}
}

func (p *Pool) track(opID string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.pending[opID] = cancel
	p.mu.Unlock()
}

func (p *Pool) untrack(opID string) {
	p.mu.Lock()
	delete(p.pending, opID)
	p.mu.Unlock()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		// Drain foreground work first so background derivatives never
		// delay an active ingest.
		select {
		case <-p.quit:
			return
		case t := <-p.foreground:
			p.execute(t)
			continue
		default:
		}

		select {
		case <-p.quit:
			return
		case t := <-p.foreground:
			p.execute(t)
		case t := <-p.background:
			p.execute(t)
		}
	}
}

func (p *Pool) execute(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.result <- taskResult{err: err}
		return
	}

	var blobs map[string][]byte
	var err error
	switch t.kind {
	case taskSizes:
		blobs, err = renderSizes(t.handle, t.sizes)
	case taskPyramid:
		blobs, err = renderPyramid(t.handle, t.tilePx)
	default:
		err = fmt.Errorf("unknown task kind %d", t.kind)
	}

	// A cancel that raced the render wins; callers never see partial output.
	if ctxErr := t.ctx.Err(); ctxErr != nil {
		t.result <- taskResult{err: ctxErr}
		return
	}
	if err != nil {
		p.logger.Warn("derivative generation failed",
			logging.String("asset_id", t.assetID),
			logging.Error(err),
		)
	}
	t.result <- taskResult{blobs: blobs, err: err}
}
