package core

import "sync"

// ApplyGuard admits at most one apply per import id. A second attempt for
// an id that is still running fails immediately with ErrApplyInProgress.
type ApplyGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewApplyGuard returns an empty guard.
func NewApplyGuard() *ApplyGuard {
	return &ApplyGuard{running: make(map[string]struct{})}
}

// Begin claims importID. The returned release must be called once the apply
// finishes. An empty id is never guarded.
func (g *ApplyGuard) Begin(importID string) (release func(), err error) {
	if importID == "" {
		return func() {}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[importID]; busy {
		return nil, ErrApplyInProgress
	}
	g.running[importID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, importID)
			g.mu.Unlock()
		})
	}, nil
}

// Running reports whether an apply for importID is in flight.
func (g *ApplyGuard) Running(importID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[importID]
	return ok
}
