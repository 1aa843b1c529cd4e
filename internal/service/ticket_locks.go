package service

import "sync"

// ticketLocks serializes mutations per ticket id so two concurrent
// transitions cannot interleave between load and store. Entries are
// refcounted and removed once the last holder releases.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*ticketLock
}

type ticketLock struct {
	mu   sync.Mutex
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*ticketLock)}
}

// acquire blocks until the per-ticket lock is held and returns the release
// function.
func (l *ticketLocks) acquire(ticketID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[ticketID]
	if !ok {
		entry = &ticketLock{}
		l.locks[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, ticketID)
		}
		l.mu.Unlock()
	}
}
