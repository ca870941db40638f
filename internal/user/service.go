package user

import (
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/gate"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
)

// Service owns user records. Every mutation that changes gate-relevant
// state pushes the fresh projection into the gate cache, so decisions
// made right after a ban/unban never see the old value.
type Service struct {
	store *file.Store
	gate  *gate.Gate
	log   logger.Logger
}

// NewService creates a user service.
func NewService(store *file.Store, g *gate.Gate, log logger.Logger) *Service {
	return &Service{store: store, gate: g, log: log}
}

// Ensure returns the user record for id, creating it on first contact.
// The display name is refreshed on every call; the platform lets users
// rename themselves.
func (s *Service) Ensure(id int64, displayName string) (domain.User, error) {
	key := strconv.FormatInt(id, 10)

	existing, found, err := s.store.Users.FindOne(key)
	if err != nil {
		return domain.User{}, err
	}
	if found {
		if existing.DisplayName == displayName {
			return existing, nil
		}
		updated, _, err := s.store.Users.Update(key,
			domain.UserPatch{DisplayName: &displayName}.Apply)
		if err != nil {
			return domain.User{}, err
		}
		return updated, nil
	}

	u := domain.User{
		ID:          id,
		DisplayName: displayName,
		JoinedAt:    time.Now(),
	}
	if err := s.store.Users.Insert(u); err != nil {
		return domain.User{}, err
	}

	s.log.Info("user created",
		logger.Int64("user_id", id),
		logger.String("display_name", displayName))
	return u, nil
}

// SetBanned flips the ban flag and refreshes the gate cache.
func (s *Service) SetBanned(id int64, banned bool) error {
	return s.mutate(id, domain.UserPatch{Banned: &banned})
}

// SetAdmin flips the admin flag and refreshes the gate cache.
func (s *Service) SetAdmin(id int64, admin bool) error {
	return s.mutate(id, domain.UserPatch{Admin: &admin})
}

// SetLanguage sets the preferred language and refreshes the gate cache.
func (s *Service) SetLanguage(id int64, language string) error {
	return s.mutate(id, domain.UserPatch{Language: &language})
}

func (s *Service) mutate(id int64, patch domain.UserPatch) error {
	updated, found, err := s.store.Users.Update(strconv.FormatInt(id, 10), patch.Apply)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	s.gate.RefreshUser(updated)
	return nil
}
