package chat

import "sync"

// PresenceRegistry tracks which users currently hold a live connection.
// One handle per user id: a new connection silently supersedes the old
// record. Closing a superseded handle is the transport layer's concern.
// The registry is owned by a Service instance; it holds no package state.
type PresenceRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewPresenceRegistry constructs an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{clients: make(map[string]*Client)}
}

// Connect records the client as the user's active handle and returns the
// replaced handle, if any.
func (p *PresenceRegistry) Connect(userID string, c *Client) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.clients[userID]
	p.clients[userID] = c
	return old
}

// Disconnect clears the user's record, but only if c is still the active
// handle. Returns false when a newer connection has superseded c.
func (p *PresenceRegistry) Disconnect(userID string, c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.clients[userID]; !ok || current != c {
		return false
	}
	delete(p.clients, userID)
	return true
}

// IsOnline reports whether the user has an active connection.
func (p *PresenceRegistry) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.clients[userID]
	return ok
}

// Send pushes an event to the user's active client, if any. Returns false
// when the user is offline or the client's buffer is full.
func (p *PresenceRegistry) Send(userID string, ev *Event) bool {
	p.mu.RLock()
	c, ok := p.clients[userID]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}

// Broadcast sends an event to every connected client except exclude.
func (p *PresenceRegistry) Broadcast(ev *Event, exclude string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for userID, c := range p.clients {
		if userID == exclude {
			continue
		}
		select {
		case c.Events <- ev:
		default:
			// Drop if slow consumer.
		}
	}
}
