package provisioning

import (
	"context"
	"sync"
)

// slugLocks serializes requests for the same slug inside one process.
// Entries are reference counted and dropped when the last holder leaves.
type slugLocks struct {
	mu    sync.Mutex
	locks map[string]*slugLock
}

type slugLock struct {
	ch   chan struct{}
	refs int
}

func newSlugLocks() *slugLocks {
	return &slugLocks{locks: make(map[string]*slugLock)}
}

// acquire blocks until slug is free or ctx is done.
func (s *slugLocks) acquire(ctx context.Context, slug string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[slug]
	if !ok {
		l = &slugLock{ch: make(chan struct{}, 1)}
		s.locks[slug] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		s.release(slug, l, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.release(slug, l, true) })
	}, nil
}

func (s *slugLocks) release(slug string, l *slugLock, held bool) {
	if held {
		<-l.ch
	}
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, slug)
	}
	s.mu.Unlock()
}
