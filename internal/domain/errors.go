package domain

import "errors"

// Stable failure signals. Callers match with errors.Is; the UI layer maps
// each to a short human message.
var (
	// ErrNotFound reports a missing endpoint, user or version record.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyActive reports a duplicate start for an endpoint that
	// already has a live session.
	ErrAlreadyActive = errors.New("watcher already active")

	// ErrUnsupportedProtocol reports a probed protocol id with no catalog
	// entry. Terminal for this attempt.
	ErrUnsupportedProtocol = errors.New("unsupported protocol version")

	// ErrConnectFailed reports a probe or connect timeout/transport error.
	// Retried only via the explicit auto-restart policy.
	ErrConnectFailed = errors.New("probe or connect failed")

	// ErrStopped reports a start that an explicit stop overrode before it
	// completed. The stop wins; no session exists.
	ErrStopped = errors.New("watcher stopped during start")

	// ErrDuplicateVersion reports a catalog insert conflict on
	// (kind, protocol id).
	ErrDuplicateVersion = errors.New("version already in catalog")

	// ErrAlreadyRegistered reports a (host, port) the same owner has
	// already registered.
	ErrAlreadyRegistered = errors.New("endpoint already registered")

	// ErrClaimed reports a (host, port) already registered by a different
	// owner.
	ErrClaimed = errors.New("endpoint claimed by another owner")
)
