package file

import (
	"fmt"
	"os"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
)

// Store owns the on-disk tables. One file per table, one mutex per table;
// operations on different tables never block each other.
type Store struct {
	Users     *Table[domain.User]
	Endpoints *Table[domain.Endpoint]
	Versions  *Table[domain.VersionEntry]
	Settings  *Table[domain.Settings]
}

// Open prepares the data directory and binds all tables.
func Open(dir string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	return &Store{
		Users:     NewTable[domain.User](dir, "users", log),
		Endpoints: NewTable[domain.Endpoint](dir, "endpoints", log),
		Versions:  NewTable[domain.VersionEntry](dir, "versions", log),
		Settings:  NewTable[domain.Settings](dir, "settings", log),
	}, nil
}

// LoadSettings returns the settings document, falling back to defaults
// when no record exists yet.
func (s *Store) LoadSettings() (domain.Settings, error) {
	set, found, err := s.Settings.FindOne(domain.SettingsKey)
	if err != nil {
		return domain.Settings{}, err
	}
	if !found {
		return domain.DefaultSettings(), nil
	}
	return set, nil
}

// UpdateSettings applies a patch to the settings document, creating it
// from defaults first when missing.
func (s *Store) UpdateSettings(patch domain.SettingsPatch) (domain.Settings, error) {
	updated, found, err := s.Settings.Update(domain.SettingsKey, patch.Apply)
	if err != nil {
		return domain.Settings{}, err
	}
	if found {
		return updated, nil
	}

	set := patch.Apply(domain.DefaultSettings())
	if err := s.Settings.Insert(set); err != nil {
		return domain.Settings{}, err
	}
	return set, nil
}
