package service

import (
	"context"
	"sync"
)

// TicketLocks serializes operations per ticket id. Entries are reference
// counted and removed when no goroutine holds or waits for them.
type TicketLocks struct {
	mu    sync.Mutex
	locks map[int64]*ticketLock
}

type ticketLock struct {
	sem  chan struct{}
	refs int
}

// NewTicketLocks creates an empty lock table.
func NewTicketLocks() *TicketLocks {
	return &TicketLocks{locks: make(map[int64]*ticketLock)}
}

// Lock blocks until the ticket's lock is acquired or ctx is done. The
// returned function releases the lock.
func (l *TicketLocks) Lock(ctx context.Context, ticketID int64) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[ticketID]
	if !ok {
		entry = &ticketLock{sem: make(chan struct{}, 1)}
		l.locks[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(ticketID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(ticketID, entry)
		})
	}, nil
}

func (l *TicketLocks) release(ticketID int64, entry *ticketLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, ticketID)
	}
}

func (l *TicketLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
