package watcher

import (
	"context"

	"github.com/MrSnakeDoc/warden/internal/domain"
)

// EndpointTable is the slice of the record store the watcher side needs:
// read one endpoint, patch one endpoint. Satisfied by the file store's
// endpoints table; tests substitute failing implementations.
type EndpointTable interface {
	FindOne(key string) (domain.Endpoint, bool, error)
	Update(key string, patch func(domain.Endpoint) domain.Endpoint) (domain.Endpoint, bool, error)
}

// Prober performs a single bounded-timeout status query against an
// endpoint, independent of opening a persistent connection.
type Prober interface {
	Probe(ctx context.Context, host string, port int) (domain.ProbeResult, error)
}

// ConnectOptions identify the persistent connection to open after a
// successful probe.
type ConnectOptions struct {
	Host     string
	Port     int
	Username string // watcher identity presented to the server
	Version  string // catalog-resolved version name
}

// Conn is a live watcher connection handle. It is owned exclusively by
// the session manager and never persisted.
//
// Close tears the connection down without firing the disconnect callback;
// the callback reports unexpected loss only. Callbacks registered after
// the corresponding state was already reached fire immediately.
type Conn interface {
	OnLive(func())
	OnDisconnect(func(reason error))
	Close() error
	Alive() bool
}

// Dialer opens persistent watcher connections.
type Dialer interface {
	Dial(ctx context.Context, opts ConnectOptions) (Conn, error)
}

// Notifier delivers a short message to an endpoint owner through the chat
// gateway. Delivery is best-effort; callers swallow failures.
type Notifier interface {
	Notify(ctx context.Context, userID int64, message string) error
}
