package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/secretary/core"
)

// threadGate admits at most one turn per thread. Slots are reference counted
// and dropped once no turn holds or waits for them.
type threadGate struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newThreadGate() *threadGate {
	return &threadGate{slots: make(map[string]*slot)}
}

// acquire blocks until the thread is free (AdmissionWait) or fails immediately
// when it is busy (AdmissionReject). The returned func releases the slot.
func (g *threadGate) acquire(ctx context.Context, threadID string, mode Admission) (func(), error) {
	g.mu.Lock()
	s, ok := g.slots[threadID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		g.slots[threadID] = s
	}
	s.refs++
	g.mu.Unlock()

	if mode == AdmissionReject {
		select {
		case s.ch <- struct{}{}:
		default:
			g.unref(threadID, s)
			return nil, core.ErrTurnInFlight
		}
	} else {
		select {
		case s.ch <- struct{}{}:
		case <-ctx.Done():
			g.unref(threadID, s)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			g.unref(threadID, s)
		})
	}, nil
}

func (g *threadGate) unref(threadID string, s *slot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(g.slots, threadID)
	}
}

// busy reports whether a turn currently holds the thread.
func (g *threadGate) busy(threadID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[threadID]
	return ok && len(s.ch) > 0
}
