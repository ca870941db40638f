package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
	"github.com/MrSnakeDoc/warden/internal/watcher"
)

type stubConn struct {
	alive  bool
	closed bool
}

func (c *stubConn) OnLive(func())            {}
func (c *stubConn) OnDisconnect(func(error)) {}
func (c *stubConn) Close() error             { c.closed = true; return nil }
func (c *stubConn) Alive() bool              { return c.alive && !c.closed }

func newTestReconciler(t *testing.T) (*Reconciler, *file.Store, *watcher.SessionTable) {
	t.Helper()
	log := logger.New("error", true)
	store, err := file.Open(t.TempDir(), log)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	sessions := watcher.NewSessionTable()
	return NewReconciler(store.Endpoints, sessions, log, DefaultReconcileInterval), store, sessions
}

func addEndpoint(t *testing.T, store *file.Store, id string, status domain.Status) {
	t.Helper()
	err := store.Endpoints.Insert(domain.Endpoint{
		ID:      id,
		OwnerID: 100,
		Kind:    domain.KindMinecraft,
		Host:    "mc.example.com",
		Port:    25565,
		Status:  status,
	})
	if err != nil {
		t.Fatalf("failed to insert endpoint: %v", err)
	}
}

func bindSession(t *testing.T, sessions *watcher.SessionTable, id string, conn watcher.Conn) {
	t.Helper()
	if !sessions.Reserve(id) {
		t.Fatalf("failed to reserve session slot for %s", id)
	}
	sessions.Bind(id, conn)
}

func endpointStatus(t *testing.T, store *file.Store, id string) domain.Status {
	t.Helper()
	ep, found, err := store.Endpoints.FindOne(id)
	if err != nil || !found {
		t.Fatalf("failed to read endpoint %s: found=%v err=%v", id, found, err)
	}
	return ep.Status
}

func TestSweepKeepsLiveSessions(t *testing.T) {
	rc, store, sessions := newTestReconciler(t)
	addEndpoint(t, store, "ep-1", domain.StatusActive)
	bindSession(t, sessions, "ep-1", &stubConn{alive: true})

	rc.Sweep(context.Background())

	if sessions.Count() != 1 {
		t.Error("a live session must survive the sweep")
	}
	if got := endpointStatus(t, store, "ep-1"); got != domain.StatusActive {
		t.Errorf("status = %v, want %v", got, domain.StatusActive)
	}
}

func TestSweepCleansDeadSessions(t *testing.T) {
	rc, store, sessions := newTestReconciler(t)
	addEndpoint(t, store, "ep-1", domain.StatusActive)
	addEndpoint(t, store, "ep-2", domain.StatusActive)
	dead := &stubConn{alive: false}
	bindSession(t, sessions, "ep-1", dead)
	bindSession(t, sessions, "ep-2", &stubConn{alive: true})

	rc.Sweep(context.Background())

	if sessions.Count() != 1 {
		t.Fatalf("session count = %v, want 1", sessions.Count())
	}
	if _, exists := sessions.Get("ep-1"); exists {
		t.Error("the dead session should be removed")
	}
	if !dead.closed {
		t.Error("the dead session's connection should be closed")
	}
	if got := endpointStatus(t, store, "ep-1"); got != domain.StatusStopped {
		t.Errorf("ep-1 status = %v, want %v", got, domain.StatusStopped)
	}
	if got := endpointStatus(t, store, "ep-2"); got != domain.StatusActive {
		t.Errorf("ep-2 status = %v, want %v", got, domain.StatusActive)
	}
}

func TestSweepDropsOrphanedSessions(t *testing.T) {
	rc, _, sessions := newTestReconciler(t)
	// Session with no backing record: deleted behind the manager's back.
	// The connection is still alive and polling; the sweep owns its
	// cleanup.
	orphan := &stubConn{alive: true}
	bindSession(t, sessions, "ghost", orphan)

	rc.Sweep(context.Background())

	if sessions.Count() != 0 {
		t.Error("a session without a record should be dropped silently")
	}
	if !orphan.closed {
		t.Error("the orphaned connection should be closed, not leaked")
	}
}

// failingTable delegates to a real table but fails reads for chosen keys.
type failingTable struct {
	*file.Table[domain.Endpoint]
	failKeys map[string]bool
}

func (t *failingTable) FindOne(key string) (domain.Endpoint, bool, error) {
	if t.failKeys[key] {
		return domain.Endpoint{}, false, errors.New("read failure")
	}
	return t.Table.FindOne(key)
}

func TestSweepMarksUnknownOnReadError(t *testing.T) {
	log := logger.New("error", true)
	store, err := file.Open(t.TempDir(), log)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	addEndpoint(t, store, "ep-1", domain.StatusActive)
	addEndpoint(t, store, "ep-2", domain.StatusActive)

	table := &failingTable{Table: store.Endpoints, failKeys: map[string]bool{"ep-1": true}}
	sessions := watcher.NewSessionTable()
	bindSession(t, sessions, "ep-1", &stubConn{alive: true})
	bindSession(t, sessions, "ep-2", &stubConn{alive: false})

	rc := NewReconciler(table, sessions, log, DefaultReconcileInterval)
	rc.Sweep(context.Background())

	// ep-1's read failed: marked unknown, session kept for the next pass.
	if got := endpointStatus(t, store, "ep-1"); got != domain.StatusUnknown {
		t.Errorf("ep-1 status = %v, want %v", got, domain.StatusUnknown)
	}
	if _, exists := sessions.Get("ep-1"); !exists {
		t.Error("the unreadable endpoint's session should be kept")
	}

	// The failure must not abort the sweep: ep-2 was still reconciled.
	if got := endpointStatus(t, store, "ep-2"); got != domain.StatusStopped {
		t.Errorf("ep-2 status = %v, want %v", got, domain.StatusStopped)
	}
	if _, exists := sessions.Get("ep-2"); exists {
		t.Error("the dead session should be removed")
	}
}

func TestSweepNilConn(t *testing.T) {
	rc, store, sessions := newTestReconciler(t)
	addEndpoint(t, store, "ep-1", domain.StatusSearching)
	// Reserved but never bound: start still in flight, conn is nil.
	if !sessions.Reserve("ep-1") {
		t.Fatal("failed to reserve session slot")
	}

	rc.Sweep(context.Background())

	if got := endpointStatus(t, store, "ep-1"); got != domain.StatusStopped {
		t.Errorf("status = %v, want %v", got, domain.StatusStopped)
	}
	if sessions.Count() != 0 {
		t.Error("a conn-less session should be cleaned up")
	}
}

func TestSweepEmpty(t *testing.T) {
	rc, _, _ := newTestReconciler(t)
	// Must be a no-op, not a panic.
	rc.Sweep(context.Background())
}
