package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/warden/internal/catalog"
	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
)

const (
	// DefaultProbeTimeout bounds the status query issued before connecting.
	DefaultProbeTimeout = 8 * time.Second
	// DefaultRestartDelay is the wait before an auto-restart re-enters the
	// state machine after a disconnect.
	DefaultRestartDelay = 30 * time.Second
)

// Manager owns the lifecycle of watcher connections: one per endpoint,
// started on request, torn down on stop, auto-restarted on disconnect
// when the endpoint asks for it.
//
// All collaborator failures are converted to domain errors at the
// operation boundary; no probe/connect error escapes raw.
type Manager struct {
	endpoints EndpointTable
	catalog   *catalog.Resolver
	sessions  *SessionTable
	prober    Prober
	dialer    Dialer
	notifier  Notifier
	log       logger.Logger

	probeTimeout time.Duration
	restartDelay time.Duration

	restartMu sync.Mutex
	restarts  map[string]*time.Timer
}

// Options tune the manager timings. Zero values fall back to defaults.
type Options struct {
	ProbeTimeout time.Duration
	RestartDelay time.Duration
}

// New creates a session manager. The session table is injected so tests
// and the reconciler share the same instance.
func New(
	endpoints EndpointTable,
	resolver *catalog.Resolver,
	sessions *SessionTable,
	prober Prober,
	dialer Dialer,
	notifier Notifier,
	log logger.Logger,
	opts Options,
) *Manager {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}

	return &Manager{
		endpoints:    endpoints,
		catalog:      resolver,
		sessions:     sessions,
		prober:       prober,
		dialer:       dialer,
		notifier:     notifier,
		log:          log,
		probeTimeout: opts.ProbeTimeout,
		restartDelay: opts.RestartDelay,
		restarts:     make(map[string]*time.Timer),
	}
}

// Sessions exposes the live session table (read-side: reconciler, ops).
func (m *Manager) Sessions() *SessionTable { return m.sessions }

// Start walks an endpoint through probe, version resolution and connect,
// and registers the resulting session.
//
// The slot is reserved before the first blocking call, so concurrent
// starts for the same endpoint see exactly one winner; the losers get
// ErrAlreadyActive. An explicit Stop issued while the probe or dial is in
// flight removes the slot; the resumed start detects that, leaves the
// persisted Stopped override in place and returns ErrStopped.
func (m *Manager) Start(ctx context.Context, endpointID string) error {
	ep, found, err := m.endpoints.FindOne(endpointID)
	if err != nil {
		return fmt.Errorf("load endpoint: %w", err)
	}
	if !found {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}

	if !m.sessions.Reserve(endpointID) {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrAlreadyActive)
	}
	m.cancelRestart(endpointID)

	if err := m.persistStatus(endpointID, domain.StatusSearching); err != nil {
		m.sessions.Remove(endpointID)
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	res, err := m.prober.Probe(probeCtx, ep.Host, ep.Port)
	if err != nil {
		return m.failStart(endpointID, ep, err)
	}

	version, known, err := m.catalog.Resolve(ep.Kind, res.ProtocolID)
	if err != nil {
		return m.failStart(endpointID, ep, err)
	}
	if !known {
		m.sessions.Remove(endpointID)
		if err := m.persistStatus(endpointID, domain.StatusUnsupported); err != nil {
			return err
		}
		m.log.Warn("probed protocol not in catalog",
			logger.String("endpoint_id", endpointID),
			logger.String("addr", ep.Addr()),
			logger.Int("protocol_id", res.ProtocolID),
			logger.String("server_label", res.VersionLabel))
		return fmt.Errorf("protocol %d: %w", res.ProtocolID, domain.ErrUnsupportedProtocol)
	}

	// A Stop during the probe removed the slot and persisted its
	// override; do not resurrect the endpoint.
	if _, reserved := m.sessions.Get(endpointID); !reserved {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrStopped)
	}

	if err := m.persistStatus(endpointID, domain.StatusConnecting); err != nil {
		m.sessions.Remove(endpointID)
		return err
	}

	conn, err := m.dialer.Dial(ctx, ConnectOptions{
		Host:     ep.Host,
		Port:     ep.Port,
		Username: ep.WatcherName,
		Version:  version,
	})
	if err != nil {
		return m.failStart(endpointID, ep, err)
	}

	if !m.sessions.Bind(endpointID, conn) {
		// Stop raced the dial and freed the slot; nobody else will ever
		// hold this connection, so it is closed here.
		if err := conn.Close(); err != nil {
			m.log.Warn("failed to close watcher connection",
				logger.String("endpoint_id", endpointID),
				logger.Error(err))
		}
		if err := m.persistStatus(endpointID, domain.StatusStopped); err != nil {
			m.log.Error("failed to persist stopped status",
				logger.String("endpoint_id", endpointID),
				logger.Error(err))
		}
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrStopped)
	}

	conn.OnLive(func() {
		if _, live := m.sessions.Get(endpointID); !live {
			return
		}
		if err := m.persistStatus(endpointID, domain.StatusActive); err != nil {
			m.log.Error("failed to persist active status",
				logger.String("endpoint_id", endpointID),
				logger.Error(err))
		}
	})
	conn.OnDisconnect(func(reason error) {
		m.handleDisconnect(ep, reason)
	})

	m.log.Info("watcher started",
		logger.String("endpoint_id", endpointID),
		logger.String("addr", ep.Addr()),
		logger.String("version", version))
	return nil
}

// Stop persists Stopped, disables auto-restart (an explicit stop is a
// deliberate override of the restart policy), cancels any pending restart
// and tears down the live session. Idempotent: a second stop with no
// session is still a success.
//
// The session teardown runs before the record write and regardless of its
// outcome, so a session whose record was deleted underneath it still gets
// its connection closed.
func (m *Manager) Stop(endpointID string) error {
	m.cancelRestart(endpointID)

	if s, exists := m.sessions.Get(endpointID); exists {
		if s.Conn != nil {
			if err := s.Conn.Close(); err != nil {
				m.log.Warn("failed to close watcher connection",
					logger.String("endpoint_id", endpointID),
					logger.Error(err))
			}
		}
		m.sessions.Remove(endpointID)
	}

	stopped := domain.StatusStopped
	off := false
	_, found, err := m.endpoints.Update(endpointID,
		domain.EndpointPatch{Status: &stopped, AutoRestart: &off}.Apply)
	if err != nil {
		return fmt.Errorf("persist stop: %w", err)
	}
	if !found {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}

	m.log.Info("watcher stopped", logger.String("endpoint_id", endpointID))
	return nil
}

// failStart converts a probe/connect failure into the terminal
// ConnectFailed state and a stable error signal.
func (m *Manager) failStart(endpointID string, ep domain.Endpoint, cause error) error {
	m.sessions.Remove(endpointID)

	if err := m.persistStatus(endpointID, domain.StatusConnectFailed); err != nil {
		m.log.Error("failed to persist connect failure",
			logger.String("endpoint_id", endpointID),
			logger.Error(err))
	}

	m.log.Warn("watcher start failed",
		logger.String("endpoint_id", endpointID),
		logger.String("addr", ep.Addr()),
		logger.Error(cause))
	return fmt.Errorf("%w: %v", domain.ErrConnectFailed, cause)
}

// handleDisconnect runs on unexpected connection loss. The slot is freed
// first so a new start can proceed even before persistence completes.
// last is the record as it stood at connect time; fresh flags are re-read
// before acting, but when the re-read itself fails the best-effort owner
// notice still goes out on the connect-time flags rather than being
// dropped with the error.
func (m *Manager) handleDisconnect(last domain.Endpoint, reason error) {
	m.sessions.Remove(last.ID)

	ep, found, err := m.endpoints.FindOne(last.ID)
	if err != nil {
		m.log.Error("failed to load endpoint after disconnect",
			logger.String("endpoint_id", last.ID),
			logger.Error(err))
		m.notifyOwner(last, reason)
		return
	}
	if !found {
		// Deleted while connected, nothing left to update.
		return
	}

	if ep.AutoRestart {
		if err := m.persistStatus(ep.ID, domain.StatusReconnecting); err != nil {
			m.log.Error("failed to persist reconnecting status",
				logger.String("endpoint_id", ep.ID),
				logger.Error(err))
		}
		m.scheduleRestart(ep.ID)
	} else {
		if err := m.persistStatus(ep.ID, domain.StatusStopped); err != nil {
			m.log.Error("failed to persist stopped status",
				logger.String("endpoint_id", ep.ID),
				logger.Error(err))
		}
	}

	m.log.Warn("watcher disconnected",
		logger.String("endpoint_id", ep.ID),
		logger.String("addr", ep.Addr()),
		logger.Error(reason))

	m.notifyOwner(ep, reason)
}

// scheduleRestart arms a cancellable timer that re-enters Start for this
// endpoint after the restart delay. The fired timer re-checks persisted
// state so it never resurrects an endpoint the owner stopped in the
// interim.
func (m *Manager) scheduleRestart(endpointID string) {
	m.restartMu.Lock()
	defer m.restartMu.Unlock()

	if prev, exists := m.restarts[endpointID]; exists {
		prev.Stop()
	}
	m.restarts[endpointID] = time.AfterFunc(m.restartDelay, func() {
		m.restartMu.Lock()
		delete(m.restarts, endpointID)
		m.restartMu.Unlock()

		ep, found, err := m.endpoints.FindOne(endpointID)
		if err != nil || !found {
			return
		}
		if !ep.AutoRestart {
			// The owner turned the policy off while the timer was
			// pending. The record must not sit in Reconnecting with no
			// session behind it.
			if ep.Status == domain.StatusReconnecting {
				if err := m.persistStatus(endpointID, domain.StatusStopped); err != nil {
					m.log.Error("failed to persist stopped status",
						logger.String("endpoint_id", endpointID),
						logger.Error(err))
				}
			}
			return
		}
		if ep.Status != domain.StatusReconnecting {
			return
		}

		// No UI context remains for a scheduled restart.
		if err := m.Start(context.Background(), endpointID); err != nil {
			m.log.Warn("auto-restart failed",
				logger.String("endpoint_id", endpointID),
				logger.Error(err))
		}
	})
}

// cancelRestart stops any pending restart timer for endpointID.
func (m *Manager) cancelRestart(endpointID string) {
	m.restartMu.Lock()
	defer m.restartMu.Unlock()

	if timer, exists := m.restarts[endpointID]; exists {
		timer.Stop()
		delete(m.restarts, endpointID)
	}
}

// notifyOwner sends a best-effort disconnect notice; failures are logged
// and swallowed.
func (m *Manager) notifyOwner(ep domain.Endpoint, reason error) {
	if !ep.NotifyOnError || m.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := fmt.Sprintf("Watcher for %s (%s) lost its connection", ep.DisplayName, ep.Addr())
	if reason != nil {
		msg = fmt.Sprintf("%s: %v", msg, reason)
	}
	if err := m.notifier.Notify(ctx, ep.OwnerID, msg); err != nil {
		m.log.Warn("owner notification failed",
			logger.String("endpoint_id", ep.ID),
			logger.Error(err))
	}
}

func (m *Manager) persistStatus(endpointID string, status domain.Status) error {
	_, _, err := m.endpoints.Update(endpointID,
		domain.EndpointPatch{Status: &status}.Apply)
	if err != nil {
		return fmt.Errorf("persist status %s: %w", status, err)
	}
	return nil
}
