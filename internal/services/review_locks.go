package services

import (
	"sync"

	"github.com/google/uuid"
)

// reviewLocks serializes writers per review inside one process. The version compare-and-set in the
// review aggregate still guards writers in other processes.
type reviewLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*reviewLock
}

type reviewLock struct {
	mu   sync.Mutex
	refs int
}

func newReviewLocks() *reviewLocks {
	return &reviewLocks{locks: map[uuid.UUID]*reviewLock{}}
}

// Lock blocks until id is free and returns the unlock func.
func (l *reviewLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk := l.locks[id]
	if lk == nil {
		lk = &reviewLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
