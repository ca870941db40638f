package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/warden/internal/cache"
	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
)

// Cache TTL policy. Eligibility is expensive (one round-trip per required
// channel), user state is one table read; both are bounded here so a
// chatty user never hammers the store or the membership service.
const (
	userStateTTL        = 30 * time.Second
	eligibleNoChecksTTL = time.Hour
	eligibleCheckedTTL  = 5 * time.Minute
	notEligibleTTL      = 2 * time.Minute
)

// MembershipChecker probes the external platform for channel membership,
// one call per required channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, channelID string, userID int64) (bool, error)
}

// UserState is the ban/admin/language projection of a User used for gate
// decisions.
type UserState struct {
	Banned   bool
	Admin    bool
	Language string
}

// Gate answers the two questions asked before almost every interaction:
// what is this user's state, and are they eligible to use the watcher.
// Both answers are cached; both caches are derived, invalidatable
// projections that own no truth.
type Gate struct {
	store     *file.Store
	checker   MembershipChecker
	log       logger.Logger
	userCache *cache.TTL[int64, UserState]
	eligCache *cache.TTL[int64, bool]
}

// New creates a gate. The caches are injected so tests can instantiate
// isolated instances.
func New(
	store *file.Store,
	checker MembershipChecker,
	userCache *cache.TTL[int64, UserState],
	eligCache *cache.TTL[int64, bool],
	log logger.Logger,
) *Gate {
	return &Gate{
		store:     store,
		checker:   checker,
		log:       log,
		userCache: userCache,
		eligCache: eligCache,
	}
}

// UserState returns the cached gate projection of a user, reading the
// store on a miss.
func (g *Gate) UserState(userID int64) (UserState, error) {
	if state, hit := g.userCache.Get(userID); hit {
		return state, nil
	}

	u, found, err := g.store.Users.FindOne(domain.User{ID: userID}.Key())
	if err != nil {
		return UserState{}, err
	}
	if !found {
		return UserState{}, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}

	state := UserState{Banned: u.Banned, Admin: u.Admin, Language: u.Language}
	g.userCache.Set(userID, state, userStateTTL)
	return state, nil
}

// RefreshUser proactively replaces the cached state after a mutation, so
// gate decisions never run on stale ban/admin/language data until natural
// expiry.
func (g *Gate) RefreshUser(u domain.User) {
	g.userCache.Set(u.ID, UserState{Banned: u.Banned, Admin: u.Admin, Language: u.Language}, userStateTTL)
}

// Eligible reports whether the user satisfies the required-channel
// memberships. Results are cached: a long TTL when no channels are
// required, minutes when channels were actually probed, a short TTL for a
// negative answer so the user is re-checked soon without being re-probed
// on every keystroke.
func (g *Gate) Eligible(ctx context.Context, userID int64) (bool, error) {
	if ok, hit := g.eligCache.Get(userID); hit {
		return ok, nil
	}

	settings, err := g.store.LoadSettings()
	if err != nil {
		return false, err
	}

	if len(settings.RequiredChannels) == 0 {
		g.eligCache.Set(userID, true, eligibleNoChecksTTL)
		return true, nil
	}

	for _, channel := range settings.RequiredChannels {
		member, err := g.checker.IsMember(ctx, channel, userID)
		if err != nil {
			// Do not cache on probe failure; next call retries.
			return false, fmt.Errorf("membership check %s: %w", channel, err)
		}
		if !member {
			g.eligCache.Set(userID, false, notEligibleTTL)
			return false, nil
		}
	}

	g.eligCache.Set(userID, true, eligibleCheckedTTL)
	return true, nil
}

// Online reports whether the service accepts non-admin interactions.
func (g *Gate) Online() (bool, error) {
	settings, err := g.store.LoadSettings()
	if err != nil {
		return false, err
	}
	return settings.Online, nil
}

// SetOnline toggles the service-wide online flag.
func (g *Gate) SetOnline(online bool) error {
	_, err := g.store.UpdateSettings(domain.SettingsPatch{Online: &online})
	return err
}

// AddRequiredChannel adds a channel to the requirement list and resets
// the eligibility cache: cached answers were computed against a different
// requirement set and can no longer be trusted.
func (g *Gate) AddRequiredChannel(channelID string) error {
	settings, err := g.store.LoadSettings()
	if err != nil {
		return err
	}
	for _, existing := range settings.RequiredChannels {
		if existing == channelID {
			return nil
		}
	}

	channels := append(settings.RequiredChannels, channelID)
	if _, err := g.store.UpdateSettings(domain.SettingsPatch{RequiredChannels: &channels}); err != nil {
		return err
	}

	g.eligCache.Reset()
	g.log.Info("required channel added, eligibility cache reset",
		logger.String("channel_id", channelID))
	return nil
}

// RemoveRequiredChannel removes a channel from the requirement list and
// resets the eligibility cache.
func (g *Gate) RemoveRequiredChannel(channelID string) error {
	settings, err := g.store.LoadSettings()
	if err != nil {
		return err
	}

	channels := make([]string, 0, len(settings.RequiredChannels))
	for _, existing := range settings.RequiredChannels {
		if existing != channelID {
			channels = append(channels, existing)
		}
	}
	if len(channels) == len(settings.RequiredChannels) {
		return nil
	}

	if _, err := g.store.UpdateSettings(domain.SettingsPatch{RequiredChannels: &channels}); err != nil {
		return err
	}

	g.eligCache.Reset()
	g.log.Info("required channel removed, eligibility cache reset",
		logger.String("channel_id", channelID))
	return nil
}
