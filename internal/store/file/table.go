package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/MrSnakeDoc/warden/internal/logger"
)

// Record is anything a Table can persist. Key must be unique within the
// table and stable for the lifetime of the record.
type Record interface {
	Key() string
}

// ErrKeyExists reports an insert with a key already present in the table.
var ErrKeyExists = errors.New("key already exists")

// Table is a single JSON file holding a flat array of records.
//
// Every operation takes the table mutex, reads the whole file, applies its
// change in memory and rewrites the whole file. There is no partial or
// append write path. Two back-to-back calls are NOT atomic as a pair;
// Update exists so that read-modify-write sequences run under one lock.
type Table[T Record] struct {
	name string
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// NewTable binds a table to <dir>/<name>.json. The file is created lazily
// on first write; a missing file reads as an empty table.
func NewTable[T Record](dir, name string, log logger.Logger) *Table[T] {
	return &Table[T]{
		name: name,
		path: filepath.Join(dir, name+".json"),
		log:  log,
	}
}

// load reads the current table content. Caller must hold t.mu.
// Missing file and malformed content both degrade to an empty table so the
// process stays available; corruption is logged, never propagated.
func (t *Table[T]) load() ([]T, error) {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read table %s: %w", t.name, err)
	}

	var recs []T
	if err := json.Unmarshal(raw, &recs); err != nil {
		t.log.Warn("table content malformed, treating as empty",
			logger.String("table", t.name),
			logger.Error(err))
		return nil, nil
	}
	return recs, nil
}

// save rewrites the full table content. Caller must hold t.mu.
// Writes to a temp file and renames so a half-written file is never left
// at the table path.
func (t *Table[T]) save(recs []T) error {
	if recs == nil {
		recs = []T{}
	}
	raw, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.name, err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write table %s: %w", t.name, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("write table %s: %w", t.name, err)
	}
	return nil
}

// List returns all records matching pred. A nil pred matches everything.
func (t *Table[T]) List(pred func(T) bool) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load()
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return recs, nil
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FindOne returns the record with the given key.
func (t *Table[T]) FindOne(key string) (T, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	recs, err := t.load()
	if err != nil {
		return zero, false, err
	}
	for _, rec := range recs {
		if rec.Key() == key {
			return rec, true, nil
		}
	}
	return zero, false, nil
}

// FindWhere returns the first record matching pred.
func (t *Table[T]) FindWhere(pred func(T) bool) (T, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	recs, err := t.load()
	if err != nil {
		return zero, false, err
	}
	for _, rec := range recs {
		if pred(rec) {
			return rec, true, nil
		}
	}
	return zero, false, nil
}

// Insert appends a record. Fails with ErrKeyExists when the key is taken.
func (t *Table[T]) Insert(rec T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load()
	if err != nil {
		return err
	}
	for _, existing := range recs {
		if existing.Key() == rec.Key() {
			return fmt.Errorf("table %s: %w: %s", t.name, ErrKeyExists, rec.Key())
		}
	}
	return t.save(append(recs, rec))
}

// Update applies patch to the record with the given key and persists the
// result, all under a single lock acquisition. Returns the updated record
// and whether the key was found.
func (t *Table[T]) Update(key string, patch func(T) T) (T, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	recs, err := t.load()
	if err != nil {
		return zero, false, err
	}
	for i, rec := range recs {
		if rec.Key() != key {
			continue
		}
		recs[i] = patch(rec)
		if err := t.save(recs); err != nil {
			return zero, false, err
		}
		return recs[i], true, nil
	}
	return zero, false, nil
}

// DeleteOne removes the record with the given key. Returns whether a
// record was removed.
func (t *Table[T]) DeleteOne(key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load()
	if err != nil {
		return false, err
	}
	for i, rec := range recs {
		if rec.Key() == key {
			recs = append(recs[:i], recs[i+1:]...)
			return true, t.save(recs)
		}
	}
	return false, nil
}

// ReplaceAll rewrites the table with exactly the given records. Callers
// rewriting a filtered subset must pass the union back, never the subset.
func (t *Table[T]) ReplaceAll(recs []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.save(recs)
}

// Count returns the number of records matching pred (nil = all).
func (t *Table[T]) Count(pred func(T) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load()
	if err != nil {
		return 0, err
	}
	if pred == nil {
		return len(recs), nil
	}
	n := 0
	for _, rec := range recs {
		if pred(rec) {
			n++
		}
	}
	return n, nil
}
