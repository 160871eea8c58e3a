package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one live socket of a device.
type Connection struct {
	DeviceID string
	Writer   Writer
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.DeviceID] == nil {
		h.connections[conn.DeviceID] = make(map[*Connection]struct{})
	}
	h.connections[conn.DeviceID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.DeviceID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.DeviceID)
	}
}

// Broadcast writes message to every connection of deviceID and drops the
// ones that fail.
func (h *Hub) Broadcast(deviceID string, message []byte) {
	h.mu.RLock()
	set := h.connections[deviceID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

func (h *Hub) Connected(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[deviceID])
}

// Total counts live connections across all devices.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.connections {
		n += len(conns)
	}
	return n
}
