package engine

import (
	"errors"
	"sync"
)

// ErrCycleInProgress is returned when a stage is invoked while a previous
// invocation of the same stage is still running. The new invocation is
// coalesced away; the scheduler simply tries again next tick.
var ErrCycleInProgress = errors.New("cycle already in progress for this stage")

// stageGuard enforces at most one concurrently running instance per stage.
// Different stages may run concurrently with each other.
type stageGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

func newStageGuard() *stageGuard {
	return &stageGuard{running: make(map[string]bool)}
}

func (g *stageGuard) tryAcquire(stage string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[stage] {
		return false
	}
	g.running[stage] = true
	return true
}

func (g *stageGuard) release(stage string) {
	g.mu.Lock()
	g.running[stage] = false
	g.mu.Unlock()
}
