package db_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/treyturner/ninjaone-e2e/internal/db"
	"github.com/treyturner/ninjaone-e2e/internal/models"
)

// newTestDB opens a fresh in-memory SQLite database for each test.
func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// sampleDevice returns a fully-populated Device for use in tests.
func sampleDevice(id, name string) *models.Device {
	return &models.Device{
		ID:          id,
		SystemName:  name,
		Type:        models.WindowsWorkstation,
		HDDCapacity: "500",
	}
}

func TestNew(t *testing.T) {
	// Verifies schema is created and the DB is usable.
	d := newTestDB(t)
	if err := d.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestCreate_GetByID(t *testing.T) {
	d := newTestDB(t)
	dev := sampleDevice("abc-123", "DESKTOP-0VCBIFF")

	if err := d.Create(dev); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := d.GetByID("abc-123")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if *got != *dev {
		t.Errorf("GetByID: got %+v, want %+v", *got, *dev)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	d := newTestDB(t)
	_, err := d.GetByID("does-not-exist")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestFindByName(t *testing.T) {
	d := newTestDB(t)
	if err := d.Create(sampleDevice("id-1", "LINUX-SERVER")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := d.FindByName("LINUX-SERVER")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if got.ID != "id-1" {
		t.Errorf("ID: got %q, want id-1", got.ID)
	}

	if _, err := d.FindByName("linux-server"); err != sql.ErrNoRows {
		t.Errorf("FindByName is case sensitive: expected sql.ErrNoRows, got %v", err)
	}
}

func TestList_Empty(t *testing.T) {
	d := newTestDB(t)
	devices, err := d.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected empty list, got %d items", len(devices))
	}
}

func TestList_InsertionOrder(t *testing.T) {
	d := newTestDB(t)

	names := []string{"C-HOST", "A-HOST", "B-HOST"}
	for i, n := range names {
		if err := d.Create(sampleDevice(string(rune('x'+i)), n)); err != nil {
			t.Fatalf("Create %q: %v", n, err)
		}
	}

	devices, err := d.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(devices) != len(names) {
		t.Fatalf("expected %d devices, got %d", len(names), len(devices))
	}
	for i, dev := range devices {
		if dev.SystemName != names[i] {
			t.Errorf("devices[%d]: got %q, want %q", i, dev.SystemName, names[i])
		}
	}
}

func TestList_TypeFilter(t *testing.T) {
	d := newTestDB(t)

	seed := []struct {
		id  string
		typ models.Type
	}{
		{"id-1", models.WindowsWorkstation},
		{"id-2", models.WindowsWorkstation},
		{"id-3", models.WindowsServer},
		{"id-4", models.Mac},
	}
	for _, s := range seed {
		dev := sampleDevice(s.id, "HOST-"+s.id)
		dev.Type = s.typ
		if err := d.Create(dev); err != nil {
			t.Fatalf("Create %q: %v", s.id, err)
		}
	}

	tests := []struct {
		typ  models.Type
		want int
	}{
		{models.WindowsWorkstation, 2},
		{models.WindowsServer, 1},
		{models.Mac, 1},
		{"LINUX", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			got, err := d.List(tt.typ)
			if err != nil {
				t.Fatalf("List(%q): %v", tt.typ, err)
			}
			if len(got) != tt.want {
				t.Errorf("List(%q): got %d, want %d", tt.typ, len(got), tt.want)
			}
		})
	}

	counts, err := d.CountByType()
	if err != nil {
		t.Fatalf("CountByType: %v", err)
	}
	if counts[string(models.WindowsWorkstation)] != 2 || counts[string(models.Mac)] != 1 {
		t.Errorf("CountByType: got %v", counts)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	d := newTestDB(t)
	if err := d.Create(sampleDevice("id-1", "SAME")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := d.Create(sampleDevice("id-2", "SAME"))
	if !errors.Is(err, db.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	// The existing record must be left untouched.
	got, err := d.GetByID("id-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SystemName != "SAME" {
		t.Errorf("SystemName: got %q, want SAME", got.SystemName)
	}
	if _, err := d.GetByID("id-2"); err != sql.ErrNoRows {
		t.Errorf("duplicate should not be stored, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	d := newTestDB(t)
	dev := sampleDevice("upd-1", "MAC-MINI")
	if err := d.Create(dev); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dev.SystemName = "MAC-MINJ"
	dev.Type = models.Mac
	dev.HDDCapacity = "1024"

	if err := d.Update(dev); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := d.GetByID("upd-1")
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if *got != *dev {
		t.Errorf("after update: got %+v, want %+v", *got, *dev)
	}
}

func TestUpdate_KeepOwnName(t *testing.T) {
	d := newTestDB(t)
	dev := sampleDevice("upd-1", "MAC-MINI")
	if err := d.Create(dev); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dev.HDDCapacity = "2"
	if err := d.Update(dev); err != nil {
		t.Errorf("Update without rename: %v", err)
	}
}

func TestUpdate_DuplicateName(t *testing.T) {
	d := newTestDB(t)
	for _, dev := range []*models.Device{sampleDevice("a", "ALPHA"), sampleDevice("b", "BRAVO")} {
		if err := d.Create(dev); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	err := d.Update(sampleDevice("b", "ALPHA"))
	if !errors.Is(err, db.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	d := newTestDB(t)
	err := d.Update(sampleDevice("ghost", "GHOST"))
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	d := newTestDB(t)
	if err := d.Create(sampleDevice("del-1", "TRASH")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := d.Delete("del-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := d.GetByID("del-1")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows after delete, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	d := newTestDB(t)
	err := d.Delete("nonexistent")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}
