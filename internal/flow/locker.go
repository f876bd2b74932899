package flow

import "sync"

// sessionLocker serializes turn processing per session id. Turns on
// different sessions proceed concurrently; two turns on the same session
// queue behind one another so extract-score-match-advance runs against a
// consistent snapshot.
type sessionLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocker() *sessionLocker {
	return &sessionLocker{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocker) Lock(sessionID string) {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLock{}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *sessionLocker) Unlock(sessionID string) {
	l.mu.Lock()
	entry := l.locks[sessionID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
