package user

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/warden/internal/cache"
	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/gate"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
)

type noopChecker struct{}

func (noopChecker) IsMember(ctx context.Context, channelID string, userID int64) (bool, error) {
	return true, nil
}

func newTestService(t *testing.T) (*Service, *gate.Gate) {
	t.Helper()
	log := logger.New("error", true)
	store, err := file.Open(t.TempDir(), log)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	g := gate.New(store, noopChecker{}, cache.New[int64, gate.UserState](), cache.New[int64, bool](), log)
	return NewService(store, g, log), g
}

func TestEnsure(t *testing.T) {
	s, _ := newTestService(t)

	u, err := s.Ensure(7, "alice")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if u.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want %q", u.DisplayName, "alice")
	}
	if u.JoinedAt.IsZero() {
		t.Error("JoinedAt should be set on first contact")
	}

	// Same name: no change, same record back.
	again, err := s.Ensure(7, "alice")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !again.JoinedAt.Equal(u.JoinedAt) {
		t.Error("JoinedAt must not change on repeat contact")
	}

	// Platform rename is picked up.
	renamed, err := s.Ensure(7, "alice2")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if renamed.DisplayName != "alice2" {
		t.Errorf("DisplayName = %q, want %q", renamed.DisplayName, "alice2")
	}
	if !renamed.JoinedAt.Equal(u.JoinedAt) {
		t.Error("rename must preserve JoinedAt")
	}
}

func TestMutationRefreshesGate(t *testing.T) {
	s, g := newTestService(t)

	if _, err := s.Ensure(7, "alice"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	// Warm the gate cache with the unbanned state.
	state, err := g.UserState(7)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if state.Banned {
		t.Fatal("new user should not be banned")
	}

	if err := s.SetBanned(7, true); err != nil {
		t.Fatalf("SetBanned() error = %v", err)
	}

	// The ban is visible immediately, not after TTL expiry.
	state, err = g.UserState(7)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if !state.Banned {
		t.Error("gate should see the ban right after SetBanned")
	}

	if err := s.SetAdmin(7, true); err != nil {
		t.Fatalf("SetAdmin() error = %v", err)
	}
	if err := s.SetLanguage(7, "fr"); err != nil {
		t.Fatalf("SetLanguage() error = %v", err)
	}
	state, err = g.UserState(7)
	if err != nil {
		t.Fatalf("UserState() error = %v", err)
	}
	if !state.Admin || state.Language != "fr" {
		t.Errorf("state = %+v, want admin with language fr", state)
	}
}

func TestMutateUnknownUser(t *testing.T) {
	s, _ := newTestService(t)

	if err := s.SetBanned(404, true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetBanned() error = %v, want ErrNotFound", err)
	}
}
