package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is one live client session. Outbound frames are queued on a bounded
// buffer drained by the transport's write pump.
type Conn struct {
	id      string
	adminID *int64

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewConn creates a connection handle. adminID is non-nil for staff sessions.
func NewConn(buffer int, adminID *int64) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		id:      uuid.NewString(),
		adminID: adminID,
		send:    make(chan []byte, buffer),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// AdminID returns the verified admin id of a staff session.
func (c *Conn) AdminID() (int64, bool) {
	if c.adminID == nil {
		return 0, false
	}
	return *c.adminID, true
}

// Outbound is drained by the write pump; it is closed by Close.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Enqueue queues a frame without blocking. It returns false when the
// connection is closed or its buffer is full.
func (c *Conn) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close marks the connection dead and releases the write pump. Safe to call
// more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
