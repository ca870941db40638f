package app

import (
	"errors"
	"time"

	"github.com/MrSnakeDoc/warden/internal/catalog"
	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
)

// bootstrap prepares persisted state on startup: the admin identity
// exists and is flagged admin, the settings document has defaults, and
// the version catalog is seeded when empty.
func bootstrap(store *file.Store, resolver *catalog.Resolver, adminID int64, log logger.Logger) error {
	admin := true
	updated, found, err := store.Users.Update(
		domain.User{ID: adminID}.Key(),
		domain.UserPatch{Admin: &admin}.Apply,
	)
	if err != nil {
		return err
	}
	if !found {
		updated = domain.User{
			ID:          adminID,
			DisplayName: "admin",
			Admin:       true,
			JoinedAt:    time.Now(),
		}
		if err := store.Users.Insert(updated); err != nil && !errors.Is(err, file.ErrKeyExists) {
			return err
		}
		log.Info("admin user created", logger.Int64("user_id", adminID))
	}

	// Materialize the defaults so the file exists and is hand-editable.
	if _, found, err := store.Settings.FindOne(domain.SettingsKey); err != nil {
		return err
	} else if !found {
		if err := store.Settings.Insert(domain.DefaultSettings()); err != nil {
			return err
		}
		log.Info("settings defaults written")
	}

	return resolver.SeedIfEmpty()
}
