package ingest

import (
	"context"
	"sync"
)

// gate is a pause point checked between files. Pausing closes nothing and
// loses nothing; Wait simply blocks until Resume or context cancellation.
type gate struct {
	mu     sync.Mutex
	resume chan struct{} // non-nil while paused
}

func (g *gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume == nil {
		g.resume = make(chan struct{})
	}
}

func (g *gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume != nil {
		close(g.resume)
		g.resume = nil
	}
}

func (g *gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resume != nil
}

// Wait blocks while the gate is paused. Cancellation always wins, so a
// paused run can still be aborted.
func (g *gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		resume := g.resume
		g.mu.Unlock()
		if resume == nil {
			return ctx.Err()
		}
		select {
		case <-resume:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
