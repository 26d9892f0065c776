package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			type_suffix TEXT NOT NULL,
			type_code INTEGER NOT NULL DEFAULT 0,
			platform TEXT NOT NULL,
			name TEXT NOT NULL,
			room TEXT,
			online INTEGER NOT NULL DEFAULT 0,
			brightness INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT '{}',
			raw_state TEXT NOT NULL DEFAULT '',
			state_updated_at TEXT,
			last_seen TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_devices_platform ON devices(platform);
		CREATE INDEX idx_devices_room ON devices(room);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-1")
	if err := repo.Create(ctx, &dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Name != dev.Name {
		t.Errorf("Name = %q, want %q", got.Name, dev.Name)
	}
	if got.Topic != dev.Topic {
		t.Errorf("Topic = %q, want %q", got.Topic, dev.Topic)
	}
	if got.Platform != PlatformLight {
		t.Errorf("Platform = %q, want %q", got.Platform, PlatformLight)
	}
	if !got.Online {
		t.Error("Online = false, want true")
	}
	if on, _ := got.State["on"].(bool); !on {
		t.Errorf("State = %v, want on=true", got.State)
	}
	if got.RawState != dev.RawState {
		t.Errorf("RawState = %q, want %q", got.RawState, dev.RawState)
	}
}

func TestSQLiteRepository_Create_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-1")
	if err := repo.Create(ctx, &dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := testDevice("dev-1")
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-1")
	if err := repo.Create(ctx, &dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dev.Name = "Renamed"
	dev.Online = false
	if err := repo.Update(ctx, &dev); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", got.Name)
	}
	if got.Online {
		t.Error("Online = true, want false")
	}
}

func TestSQLiteRepository_Update_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	dev := testDevice("missing")
	if err := repo.Update(context.Background(), &dev); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-1")
	if err := repo.Create(ctx, &dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "dev-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrDeviceNotFound", err)
	}

	if err := repo.Delete(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_UpdateState_Merges(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	dev := testDevice("dev-1")
	if err := repo.Create(ctx, &dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Partial update: only "on" changes, "bri" must survive.
	if err := repo.UpdateState(ctx, "dev-1", State{"on": false}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if on, _ := got.State["on"].(bool); on {
		t.Error("State on = true, want false")
	}
	if bri, _ := got.State["bri"].(float64); bri != 50 {
		t.Errorf("State bri = %v, want 50 (merge should preserve it)", got.State["bri"])
	}
	if got.StateUpdatedAt == nil {
		t.Error("StateUpdatedAt should be set after UpdateState")
	}
}

func TestSQLiteRepository_ListByPlatform(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	light := testDevice("dev-1")
	fan := testDevice("dev-2")
	fan.TypeSuffix = "fan"
	fan.Platform = PlatformFan

	for _, d := range []*Device{&light, &fan} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	fans, err := repo.ListByPlatform(ctx, PlatformFan)
	if err != nil {
		t.Fatalf("ListByPlatform() error = %v", err)
	}
	if len(fans) != 1 || fans[0].ID != "dev-2" {
		t.Errorf("ListByPlatform(fan) = %+v, want [dev-2]", fans)
	}
}

func TestSQLiteRepository_ListByRoom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	bedroom := testDevice("dev-1")
	kitchen := testDevice("dev-2")
	kitchen.Room = "Kitchen"

	for _, d := range []*Device{&bedroom, &kitchen} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	devices, err := repo.ListByRoom(ctx, "Kitchen")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "dev-2" {
		t.Errorf("ListByRoom(Kitchen) = %+v, want [dev-2]", devices)
	}
}
