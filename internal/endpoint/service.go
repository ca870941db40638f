package endpoint

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
)

// DefaultWatcherName is the identity a watcher presents to the server
// until the owner picks one.
const DefaultWatcherName = "warden_watch"

// Service owns endpoint registration, renaming, removal and the
// sequential display-name policy.
type Service struct {
	store *file.Store
	log   logger.Logger
}

// NewService creates an endpoint service.
func NewService(store *file.Store, log logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Register creates an endpoint for ownerID.
//
// Policy on duplicate (host, port): refused with ErrAlreadyRegistered
// when the owner already has it, with ErrClaimed when someone else does.
// Checked, not physically enforced; the window between check and insert
// is accepted.
func (s *Service) Register(ownerID int64, host string, port int) (domain.Endpoint, error) {
	existing, found, err := s.store.Endpoints.FindWhere(func(e domain.Endpoint) bool {
		return e.Host == host && e.Port == port
	})
	if err != nil {
		return domain.Endpoint{}, err
	}
	if found {
		if existing.OwnerID == ownerID {
			return domain.Endpoint{}, fmt.Errorf("%s:%d: %w", host, port, domain.ErrAlreadyRegistered)
		}
		return domain.Endpoint{}, fmt.Errorf("%s:%d: %w", host, port, domain.ErrClaimed)
	}

	// v7: time-ordered, so ascending id order is also creation order.
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Endpoint{}, fmt.Errorf("generate endpoint id: %w", err)
	}

	ep := domain.Endpoint{
		ID:          id.String(),
		OwnerID:     ownerID,
		Kind:        domain.KindMinecraft,
		Host:        host,
		Port:        port,
		Status:      domain.StatusStopped,
		WatcherName: DefaultWatcherName,
	}
	if err := s.store.Endpoints.Insert(ep); err != nil {
		return domain.Endpoint{}, err
	}

	if err := s.Renumber(ownerID); err != nil {
		return domain.Endpoint{}, err
	}

	s.log.Info("endpoint registered",
		logger.String("endpoint_id", ep.ID),
		logger.Int64("owner_id", ownerID),
		logger.String("addr", ep.Addr()))

	// Re-read to pick up the assigned display name.
	ep, _, err = s.store.Endpoints.FindOne(ep.ID)
	return ep, err
}

// Delete removes an endpoint owned by ownerID and renumbers the
// remainder.
func (s *Service) Delete(endpointID string, ownerID int64) error {
	ep, found, err := s.store.Endpoints.FindOne(endpointID)
	if err != nil {
		return err
	}
	if !found || ep.OwnerID != ownerID {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}

	if _, err := s.store.Endpoints.DeleteOne(endpointID); err != nil {
		return err
	}
	return s.Renumber(ownerID)
}

// Rename sets the display name of an endpoint.
func (s *Service) Rename(endpointID string, name string) error {
	_, found, err := s.store.Endpoints.Update(endpointID,
		domain.EndpointPatch{DisplayName: &name}.Apply)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}
	return nil
}

// SetWatcherName sets the identity the watcher presents to the server.
func (s *Service) SetWatcherName(endpointID string, name string) error {
	_, found, err := s.store.Endpoints.Update(endpointID,
		domain.EndpointPatch{WatcherName: &name}.Apply)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}
	return nil
}

// SetAutoRestart toggles the auto-restart policy flag.
func (s *Service) SetAutoRestart(endpointID string, enabled bool) error {
	_, found, err := s.store.Endpoints.Update(endpointID,
		domain.EndpointPatch{AutoRestart: &enabled}.Apply)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}
	return nil
}

// SetNotifyOnError toggles the disconnect notification flag.
func (s *Service) SetNotifyOnError(endpointID string, enabled bool) error {
	_, found, err := s.store.Endpoints.Update(endpointID,
		domain.EndpointPatch{NotifyOnError: &enabled}.Apply)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("endpoint %s: %w", endpointID, domain.ErrNotFound)
	}
	return nil
}

// ListByOwner returns the owner's endpoints sorted by ascending id.
func (s *Service) ListByOwner(ownerID int64) ([]domain.Endpoint, error) {
	eps, err := s.store.Endpoints.List(func(e domain.Endpoint) bool {
		return e.OwnerID == ownerID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID < eps[j].ID })
	return eps, nil
}

// Renumber reassigns sequential display names ("#1", "#2", ...) to the
// owner's endpoints, ordered by ascending record id.
//
// The write-back is the union of everyone else's untouched records and
// the renumbered subset. Writing only the filtered subset would destroy
// other owners' records, since a save rewrites the whole table.
func (s *Service) Renumber(ownerID int64) error {
	all, err := s.store.Endpoints.List(nil)
	if err != nil {
		return err
	}

	mine := make([]domain.Endpoint, 0, len(all))
	others := make([]domain.Endpoint, 0, len(all))
	for _, ep := range all {
		if ep.OwnerID == ownerID {
			mine = append(mine, ep)
		} else {
			others = append(others, ep)
		}
	}

	sort.Slice(mine, func(i, j int) bool { return mine[i].ID < mine[j].ID })
	for i := range mine {
		mine[i].DisplayName = fmt.Sprintf("#%d", i+1)
	}

	return s.store.Endpoints.ReplaceAll(append(others, mine...))
}
