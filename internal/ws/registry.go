package ws

import (
	"sync"

	"github.com/echoear/gateway/internal/session"
	"github.com/echoear/gateway/internal/transport"
)

// Conn bundles the live sender and session state for one connected device.
type Conn struct {
	Sender  *transport.Sender
	Session *session.Session
}

// Registry tracks one live connection per device id, so the reminder
// scheduler and the connection handler's reconnect-replacement logic can
// both find (or replace) a device's current socket.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register stores c under deviceID, returning the previous entry (if any)
// so the caller can cancel its in-flight pipeline before replacing it.
func (r *Registry) Register(deviceID string, c *Conn) (previous *Conn, hadPrevious bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, hadPrevious = r.conns[deviceID]
	r.conns[deviceID] = c
	return previous, hadPrevious
}

// Remove deletes deviceID's entry iff it still points at c (a stale entry
// left by a connection that has since been replaced is not removed).
func (r *Registry) Remove(deviceID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[deviceID]; ok && current == c {
		delete(r.conns, deviceID)
	}
}

// LookupConnection returns the device's live sender and session, used by the
// reminder scheduler to find a delivery target. Satisfies scheduler.ConnLookup.
func (r *Registry) LookupConnection(deviceID string) (*transport.Sender, *session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[deviceID]
	if !ok {
		return nil, nil, false
	}
	return c.Sender, c.Session, true
}
