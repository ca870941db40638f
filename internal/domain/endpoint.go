package domain

import "fmt"

// Kind identifies the game protocol family of an endpoint.
type Kind string

// KindMinecraft is the only supported kind today.
const KindMinecraft Kind = "minecraft"

// Status is the persisted watcher state of an endpoint.
type Status string

const (
	// StatusStopped means no watcher session exists.
	StatusStopped Status = "stopped"
	// StatusSearching means a probe has been issued.
	StatusSearching Status = "searching"
	// StatusConnecting means the probe succeeded and a persistent
	// connection is being opened.
	StatusConnecting Status = "connecting"
	// StatusActive means the watcher connection is confirmed up.
	StatusActive Status = "active"
	// StatusReconnecting means an active session was lost and a restart
	// is scheduled.
	StatusReconnecting Status = "reconnecting"
	// StatusUnsupported means the probed protocol id has no catalog entry.
	StatusUnsupported Status = "unsupported"
	// StatusConnectFailed means the probe or connect attempt failed.
	StatusConnectFailed Status = "connect_failed"
	// StatusUnknown is set when reconciliation could not determine the
	// real state of an endpoint.
	StatusUnknown Status = "unknown"
)

// Endpoint is a user-registered remote game server being watched.
//
// ID is immutable once assigned. Status, the two boolean flags,
// WatcherName and DisplayName are the only fields mutated post-creation.
type Endpoint struct {
	ID            string `json:"id"`
	OwnerID       int64  `json:"owner_id"`
	DisplayName   string `json:"display_name"`
	Kind          Kind   `json:"kind"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Status        Status `json:"status"`
	NotifyOnError bool   `json:"notify_on_error"`
	AutoRestart   bool   `json:"auto_restart"`
	WatcherName   string `json:"watcher_name"`
}

func (e Endpoint) Key() string { return e.ID }

// Addr returns the host:port form used in logs and notifications.
func (e Endpoint) Addr() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// EndpointPatch mutates the mutable fields of an Endpoint.
// Nil fields are left untouched.
type EndpointPatch struct {
	DisplayName   *string
	Status        *Status
	NotifyOnError *bool
	AutoRestart   *bool
	WatcherName   *string
}

func (p EndpointPatch) Apply(e Endpoint) Endpoint {
	if p.DisplayName != nil {
		e.DisplayName = *p.DisplayName
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.NotifyOnError != nil {
		e.NotifyOnError = *p.NotifyOnError
	}
	if p.AutoRestart != nil {
		e.AutoRestart = *p.AutoRestart
	}
	if p.WatcherName != nil {
		e.WatcherName = *p.WatcherName
	}
	return e
}
