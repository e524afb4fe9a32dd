package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// RoomManager maps each ticket to the connections subscribed to its live
// channel and tracks staff observers. One mutex guards all membership state
// and is never held across I/O; frame delivery is a non-blocking enqueue.
type RoomManager struct {
	mu        sync.Mutex
	rooms     map[int64]map[*Conn]struct{}
	joined    map[*Conn]map[int64]struct{}
	// closed holds one tombstone per closed ticket for the process lifetime.
	// Tickets never reopen, so entries are never pruned; growth is bounded by
	// the number of tickets closed since start.
	closed    map[int64]struct{}
	observers map[*Conn]struct{}

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRoomManager creates an empty manager.
func NewRoomManager(logger *zap.Logger, metrics *observability.Metrics) *RoomManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomManager{
		rooms:     make(map[int64]map[*Conn]struct{}),
		joined:    make(map[*Conn]map[int64]struct{}),
		closed:    make(map[int64]struct{}),
		observers: make(map[*Conn]struct{}),
		logger:    logger,
		metrics:   metrics,
	}
}

// Join adds conn to the ticket's room. It refuses (returns false) when the
// room was closed by ForceEvictAll or the connection is already gone.
func (m *RoomManager) Join(conn *Conn, ticketID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, closed := m.closed[ticketID]; closed || conn.Closed() {
		return false
	}
	members, ok := m.rooms[ticketID]
	if !ok {
		members = make(map[*Conn]struct{})
		m.rooms[ticketID] = members
	}
	members[conn] = struct{}{}

	tickets, ok := m.joined[conn]
	if !ok {
		tickets = make(map[int64]struct{})
		m.joined[conn] = tickets
	}
	tickets[ticketID] = struct{}{}
	return true
}

// Leave removes conn from one room. Leaving a room one is not in is a no-op.
func (m *RoomManager) Leave(conn *Conn, ticketID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(conn, ticketID)
}

// LeaveAll removes conn from every room and from the staff observers.
func (m *RoomManager) LeaveAll(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(conn)
}

// ForceEvictAll empties the ticket's room and marks it closed so later joins
// are refused. It returns the number of evicted connections.
func (m *RoomManager) ForceEvictAll(ticketID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[ticketID] = struct{}{}
	members := m.rooms[ticketID]
	for conn := range members {
		if tickets, ok := m.joined[conn]; ok {
			delete(tickets, ticketID)
			if len(tickets) == 0 {
				delete(m.joined, conn)
			}
		}
	}
	delete(m.rooms, ticketID)
	m.metrics.Evicted(len(members))
	return len(members)
}

// AddObserver registers a staff connection for global notifications.
func (m *RoomManager) AddObserver(conn *Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.Closed() {
		return false
	}
	m.observers[conn] = struct{}{}
	return true
}

// RemoveObserver unregisters a staff connection.
func (m *RoomManager) RemoveObserver(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, conn)
}

// Members returns the number of connections in the ticket's room.
func (m *RoomManager) Members(ticketID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms[ticketID])
}

// IsMember reports whether conn is currently in the ticket's room.
func (m *RoomManager) IsMember(conn *Conn, ticketID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[ticketID][conn]
	return ok
}

// Broadcast delivers frame to every member of the ticket's room and returns
// the number of deliveries.
func (m *RoomManager) Broadcast(ticketID int64, frame []byte) int {
	m.mu.Lock()
	delivered, slow := deliver(m.rooms[ticketID], frame)
	for _, conn := range slow {
		m.dropLocked(conn)
	}
	m.mu.Unlock()
	m.closeSlow(slow)
	return delivered
}

// BroadcastStaff delivers frame to every staff observer.
func (m *RoomManager) BroadcastStaff(frame []byte) int {
	m.mu.Lock()
	delivered, slow := deliver(m.observers, frame)
	for _, conn := range slow {
		m.dropLocked(conn)
	}
	m.mu.Unlock()
	m.closeSlow(slow)
	return delivered
}

func deliver(targets map[*Conn]struct{}, frame []byte) (int, []*Conn) {
	delivered := 0
	var slow []*Conn
	for conn := range targets {
		if conn.Enqueue(frame) {
			delivered++
			continue
		}
		slow = append(slow, conn)
	}
	return delivered, slow
}

// closeSlow disconnects connections that could not keep up; dropping a
// frame silently would break per-room ordering for that client.
func (m *RoomManager) closeSlow(slow []*Conn) {
	for _, conn := range slow {
		if !conn.Closed() {
			m.metrics.SlowConsumer()
			m.logger.Warn("dropping slow connection", zap.String("conn_id", conn.ID()))
		}
		conn.Close()
	}
}

func (m *RoomManager) leaveLocked(conn *Conn, ticketID int64) {
	if members, ok := m.rooms[ticketID]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(m.rooms, ticketID)
		}
	}
	if tickets, ok := m.joined[conn]; ok {
		delete(tickets, ticketID)
		if len(tickets) == 0 {
			delete(m.joined, conn)
		}
	}
}

func (m *RoomManager) dropLocked(conn *Conn) {
	for ticketID := range m.joined[conn] {
		if members, ok := m.rooms[ticketID]; ok {
			delete(members, conn)
			if len(members) == 0 {
				delete(m.rooms, ticketID)
			}
		}
	}
	delete(m.joined, conn)
	delete(m.observers, conn)
}
