package service

import "sync"

// circleLocks serializes commands per circle id. Entries are dropped once no
// goroutine holds or waits on them.
type circleLocks struct {
	mu    sync.Mutex
	locks map[string]*circleLock
}

type circleLock struct {
	mu   sync.Mutex
	refs int
}

func newCircleLocks() *circleLocks {
	return &circleLocks{locks: map[string]*circleLock{}}
}

// lock blocks until the caller owns circleID and returns the release func
func (l *circleLocks) lock(circleID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[circleID]
	if !ok {
		entry = &circleLock{}
		l.locks[circleID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, circleID)
		}
		l.mu.Unlock()
	}
}

// held returns the number of circle ids currently tracked
func (l *circleLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
