package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// taskGuard lets at most one run of each named background task proceed and
// remembers when each one started, so shutdown can wait for them and report
// the ones it gave up on.
type taskGuard struct {
	mu      sync.Mutex
	started map[string]time.Time
	wg      sync.WaitGroup
}

// run calls fn unless a task with the same name is in flight, in which case
// it returns false without calling it.
func (g *taskGuard) run(name string, fn func()) bool {
	g.mu.Lock()
	if g.started == nil {
		g.started = make(map[string]time.Time)
	}
	if _, busy := g.started[name]; busy {
		g.mu.Unlock()
		return false
	}
	g.started[name] = time.Now()
	g.wg.Add(1)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.started, name)
		g.mu.Unlock()
		g.wg.Done()
	}()
	fn()
	return true
}

// active lists the tasks in flight, oldest first.
func (g *taskGuard) active() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.started))
	for name := range g.started {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return g.started[names[i]].Before(g.started[names[j]])
	})
	return names
}

// wait blocks until no task is in flight. It returns ctx.Err() if ctx ends
// first.
func (g *taskGuard) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
