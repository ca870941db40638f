package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
	"github.com/MrSnakeDoc/warden/internal/store/file"
)

//go:embed seed.yaml
var seedRaw []byte

type seedFile struct {
	Versions []struct {
		Kind     domain.Kind `yaml:"kind"`
		Protocol int         `yaml:"protocol"`
		Name     string      `yaml:"name"`
	} `yaml:"versions"`
}

// Resolver maps (kind, protocol id) pairs reported by probed endpoints to
// human-readable version names, sourced from the versions table.
type Resolver struct {
	versions *file.Table[domain.VersionEntry]
	log      logger.Logger
}

// New creates a resolver over the versions table.
func New(versions *file.Table[domain.VersionEntry], log logger.Logger) *Resolver {
	return &Resolver{versions: versions, log: log}
}

// Resolve returns the version name for (kind, protocolID). The lookup map
// is rebuilt from the full table on each call; there is no persistent
// index. A miss means the endpoint must be marked unsupported.
func (r *Resolver) Resolve(kind domain.Kind, protocolID int) (string, bool, error) {
	entries, err := r.versions.List(nil)
	if err != nil {
		return "", false, err
	}

	byKey := make(map[string]string, len(entries))
	for _, e := range entries {
		byKey[e.Key()] = e.Name
	}

	name, ok := byKey[domain.VersionEntry{Kind: kind, ProtocolID: protocolID}.Key()]
	return name, ok, nil
}

// Add inserts a catalog entry. Conflicts on (kind, protocol id) surface
// as ErrDuplicateVersion, distinct from generic store failure.
func (r *Resolver) Add(entry domain.VersionEntry) error {
	err := r.versions.Insert(entry)
	if errors.Is(err, file.ErrKeyExists) {
		return fmt.Errorf("%w: %s %s", domain.ErrDuplicateVersion, entry.Kind, entry.Name)
	}
	return err
}

// Delete removes a catalog entry.
func (r *Resolver) Delete(kind domain.Kind, protocolID int) error {
	found, err := r.versions.DeleteOne(domain.VersionEntry{Kind: kind, ProtocolID: protocolID}.Key())
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

// SeedIfEmpty populates the versions table from the embedded seed when it
// holds no entries. Called once at startup; an already-populated table is
// left alone so admin edits survive restarts.
func (r *Resolver) SeedIfEmpty() error {
	n, err := r.versions.Count(nil)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var seed seedFile
	if err := yaml.Unmarshal(seedRaw, &seed); err != nil {
		return fmt.Errorf("parse version seed: %w", err)
	}

	entries := make([]domain.VersionEntry, 0, len(seed.Versions))
	for _, v := range seed.Versions {
		entries = append(entries, domain.VersionEntry{
			Kind:       v.Kind,
			ProtocolID: v.Protocol,
			Name:       v.Name,
		})
	}
	if err := r.versions.ReplaceAll(entries); err != nil {
		return err
	}

	r.log.Info("seeded version catalog",
		logger.Int("entries", len(entries)))
	return nil
}
