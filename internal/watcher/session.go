package watcher

import (
	"sync"
	"time"
)

// Session is the in-memory record of one live watcher connection.
// Conn is nil between Reserve and Bind, while the probe/connect sequence
// is still in flight.
type Session struct {
	EndpointID string
	Conn       Conn
	StartedAt  time.Time
}

// SessionTable indexes live sessions by endpoint id. At most one Session
// may exist per endpoint at any instant; Reserve makes the
// check-and-insert atomic so concurrent starts cannot both win.
type SessionTable struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*Session)}
}

// Reserve claims the slot for endpointID. Returns false when a session
// (reserved or bound) already exists.
func (t *SessionTable) Reserve(endpointID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.sessions[endpointID]; exists {
		return false
	}
	t.sessions[endpointID] = &Session{EndpointID: endpointID, StartedAt: time.Now()}
	return true
}

// Bind attaches the opened connection to a previously reserved slot.
// Returns false when the slot no longer exists, meaning an explicit stop
// won the race while the connect sequence was in flight; the caller owns
// the connection and must close it.
func (t *SessionTable) Bind(endpointID string, conn Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, exists := t.sessions[endpointID]
	if !exists {
		return false
	}
	s.Conn = conn
	return true
}

// Get returns the session for endpointID.
func (t *SessionTable) Get(endpointID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, exists := t.sessions[endpointID]
	return s, exists
}

// Remove frees the slot for endpointID.
func (t *SessionTable) Remove(endpointID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, endpointID)
}

// All returns a snapshot of the current sessions.
func (t *SessionTable) All() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (t *SessionTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}
