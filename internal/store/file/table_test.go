package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/logger"
)

func newTestTable(t *testing.T) *Table[domain.Endpoint] {
	t.Helper()
	return NewTable[domain.Endpoint](t.TempDir(), "endpoints", logger.New("error", true))
}

func testEndpoint(id string, owner int64) domain.Endpoint {
	return domain.Endpoint{
		ID:      id,
		OwnerID: owner,
		Kind:    domain.KindMinecraft,
		Host:    "mc.example.com",
		Port:    25565,
		Status:  domain.StatusStopped,
	}
}

func TestInsertThenFindOne(t *testing.T) {
	tbl := newTestTable(t)

	want := testEndpoint("ep-1", 100)
	if err := tbl.Insert(want); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, found, err := tbl.FindOne("ep-1")
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if !found {
		t.Fatal("FindOne() should find the inserted record")
	}
	if got != want {
		t.Errorf("FindOne() = %+v, want %+v", got, want)
	}
}

func TestInsertDuplicateKey(t *testing.T) {
	tbl := newTestTable(t)

	if err := tbl.Insert(testEndpoint("ep-1", 100)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := tbl.Insert(testEndpoint("ep-1", 200))
	if !errors.Is(err, ErrKeyExists) {
		t.Errorf("Insert() error = %v, want ErrKeyExists", err)
	}
}

func TestUpdatePatchesOnlyGivenFields(t *testing.T) {
	tbl := newTestTable(t)

	ep := testEndpoint("ep-1", 100)
	ep.DisplayName = "#1"
	if err := tbl.Insert(ep); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	active := domain.StatusActive
	updated, found, err := tbl.Update("ep-1", domain.EndpointPatch{Status: &active}.Apply)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !found {
		t.Fatal("Update() should find the record")
	}
	if updated.Status != domain.StatusActive {
		t.Errorf("Update() status = %v, want %v", updated.Status, domain.StatusActive)
	}
	if updated.DisplayName != "#1" || updated.Host != ep.Host || updated.OwnerID != ep.OwnerID {
		t.Errorf("Update() touched unpatched fields: %+v", updated)
	}

	got, _, err := tbl.FindOne("ep-1")
	if err != nil {
		t.Fatalf("FindOne() error = %v", err)
	}
	if got != updated {
		t.Errorf("FindOne() after Update() = %+v, want %+v", got, updated)
	}
}

func TestUpdateMissingKey(t *testing.T) {
	tbl := newTestTable(t)

	active := domain.StatusActive
	_, found, err := tbl.Update("nope", domain.EndpointPatch{Status: &active}.Apply)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if found {
		t.Error("Update() on missing key should report not found")
	}
}

func TestDeleteOne(t *testing.T) {
	tbl := newTestTable(t)

	if err := tbl.Insert(testEndpoint("ep-1", 100)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	removed, err := tbl.DeleteOne("ep-1")
	if err != nil {
		t.Fatalf("DeleteOne() error = %v", err)
	}
	if !removed {
		t.Error("DeleteOne() should remove the record")
	}

	removed, err = tbl.DeleteOne("ep-1")
	if err != nil {
		t.Fatalf("DeleteOne() second call error = %v", err)
	}
	if removed {
		t.Error("DeleteOne() on missing key should report not removed")
	}
}

func TestListAndCountWithPredicate(t *testing.T) {
	tbl := newTestTable(t)

	for i, owner := range []int64{100, 100, 200} {
		ep := testEndpoint("ep-"+string(rune('a'+i)), owner)
		ep.Port = 25565 + i
		if err := tbl.Insert(ep); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	mine, err := tbl.List(func(e domain.Endpoint) bool { return e.OwnerID == 100 })
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("List(owner=100) = %v records, want 2", len(mine))
	}

	n, err := tbl.Count(nil)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Count(nil) = %v, want 3", n)
	}
}

func TestMissingFileReadsEmpty(t *testing.T) {
	tbl := newTestTable(t)

	recs, err := tbl.List(nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("List() on missing file = %v records, want 0", len(recs))
	}
}

func TestMalformedFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	tbl := NewTable[domain.Endpoint](dir, "endpoints", logger.New("error", true))

	if err := os.WriteFile(filepath.Join(dir, "endpoints.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write malformed file: %v", err)
	}

	recs, err := tbl.List(nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("List() on malformed file = %v records, want 0", len(recs))
	}

	// The table stays writable after recovering from corruption.
	if err := tbl.Insert(testEndpoint("ep-1", 100)); err != nil {
		t.Errorf("Insert() after malformed read error = %v", err)
	}
}

func TestReplaceAll(t *testing.T) {
	tbl := newTestTable(t)

	if err := tbl.Insert(testEndpoint("ep-1", 100)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	replacement := []domain.Endpoint{testEndpoint("ep-2", 200), testEndpoint("ep-3", 300)}
	if err := tbl.ReplaceAll(replacement); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	recs, err := tbl.List(nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("List() = %v records after ReplaceAll, want 2", len(recs))
	}
	if _, found, _ := tbl.FindOne("ep-1"); found {
		t.Error("ep-1 should be gone after ReplaceAll")
	}
}

func TestSettingsDefaults(t *testing.T) {
	store, err := Open(t.TempDir(), logger.New("error", true))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	settings, err := store.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if !settings.Online {
		t.Error("LoadSettings() defaults should be online")
	}

	off := false
	if _, err := store.UpdateSettings(domain.SettingsPatch{Online: &off}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	settings, err = store.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if settings.Online {
		t.Error("LoadSettings() should reflect the persisted toggle")
	}
}
