package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/watcher"
)

// DefaultReconcileInterval is the spacing between reconciliation sweeps.
const DefaultReconcileInterval = 6 * time.Hour

// Reconciler periodically reconciles in-memory session liveness against
// persisted endpoint status. A dead connection that never fired its
// disconnect callback, or a record mutated behind the manager's back,
// gets cleaned up here.
type Reconciler struct {
	endpoints watcher.EndpointTable
	sessions  *watcher.SessionTable
	logger    logger.Logger
	interval  time.Duration
	stopCh    chan struct{}
}

// NewReconciler creates a reconciler over the shared session table.
func NewReconciler(
	endpoints watcher.EndpointTable,
	sessions *watcher.SessionTable,
	log logger.Logger,
	interval time.Duration,
) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}

	return &Reconciler{
		endpoints: endpoints,
		sessions:  sessions,
		logger:    log,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic reconciliation process.
func (rc *Reconciler) Start(ctx context.Context) error {
	ticker := time.NewTicker(rc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rc.Sweep(ctx)
			case <-rc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reconciler.
func (rc *Reconciler) Stop() {
	close(rc.stopCh)
}

// Sweep walks every live session once. Per-endpoint failures are logged
// and the endpoint marked unknown; one bad endpoint never aborts the
// whole pass.
func (rc *Reconciler) Sweep(ctx context.Context) {
	sessions := rc.sessions.All()
	if len(sessions) == 0 {
		rc.logger.Debug("no live sessions to reconcile")
		return
	}

	rc.logger.Info("reconciling live sessions",
		logger.Int("count", len(sessions)))

	cleaned := 0
	for _, s := range sessions {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if rc.reconcileOne(s) {
			cleaned++
		}
	}

	if cleaned > 0 {
		rc.logger.Info("reconciliation completed",
			logger.Int("sessions_cleaned", cleaned))
	}
}

// reconcileOne checks a single session. Returns true when the session was
// removed.
func (rc *Reconciler) reconcileOne(s *watcher.Session) bool {
	ep, found, err := rc.endpoints.FindOne(s.EndpointID)
	if err != nil {
		rc.logger.Error("failed to load endpoint during reconciliation",
			logger.String("endpoint_id", s.EndpointID),
			logger.Error(err))
		rc.markUnknown(s.EndpointID)
		return false
	}
	if !found {
		// Record deleted while the session was live. The store's view is
		// already clean, but the connection is still ours: nothing else
		// will ever close it.
		rc.closeConn(s)
		rc.sessions.Remove(s.EndpointID)
		return true
	}

	if s.Conn != nil && s.Conn.Alive() {
		return false
	}

	rc.closeConn(s)
	rc.sessions.Remove(s.EndpointID)
	stopped := domain.StatusStopped
	if _, _, err := rc.endpoints.Update(s.EndpointID,
		domain.EndpointPatch{Status: &stopped}.Apply); err != nil {
		rc.logger.Error("failed to persist stopped status during reconciliation",
			logger.String("endpoint_id", s.EndpointID),
			logger.Error(err))
		rc.markUnknown(s.EndpointID)
		return true
	}

	rc.logger.Info("reconciled dead session",
		logger.String("endpoint_id", s.EndpointID),
		logger.String("addr", ep.Addr()))
	return true
}

func (rc *Reconciler) closeConn(s *watcher.Session) {
	if s.Conn == nil {
		return
	}
	if err := s.Conn.Close(); err != nil {
		rc.logger.Warn("failed to close connection during reconciliation",
			logger.String("endpoint_id", s.EndpointID),
			logger.Error(err))
	}
}

func (rc *Reconciler) markUnknown(endpointID string) {
	unknown := domain.StatusUnknown
	if _, _, err := rc.endpoints.Update(endpointID,
		domain.EndpointPatch{Status: &unknown}.Apply); err != nil {
		rc.logger.Error("failed to mark endpoint unknown",
			logger.String("endpoint_id", endpointID),
			logger.Error(err))
	}
}
