package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations points the loader at the testdata files for one test.
func useTestMigrations(t *testing.T) {
	t.Helper()
	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Both steps applied in order: the table exists with the column the
	// second migration adds.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO test_devices (id, name, room) VALUES ('d1', 'Lamp', 'Lounge')",
	); err != nil {
		t.Fatalf("schema incomplete after Migrate(): %v", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied migrations = %d, want 2", len(applied))
	}

	// Rerunning is a no-op, not a duplicate-table error.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = embed.FS{}
	MigrationsDir = "."

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestLoadMigrations_SortedByVersion(t *testing.T) {
	useTestMigrations(t)

	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("migrations = %d, want 2", len(migrations))
	}
	if migrations[0].Version >= migrations[1].Version {
		t.Errorf("migrations out of order: %s before %s",
			migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "test_schema" {
		t.Errorf("first migration name = %q, want test_schema", migrations[0].Name)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOk      bool
	}{
		{"20260118_120000_create_devices.up.sql", "20260118_120000", "create_devices", true},
		{"20260118_120000_add_room_to_devices.up.sql", "20260118_120000", "add_room_to_devices", true},
		{"20260118_120000_create_devices.down.sql", "", "", false},
		{"20260118_120000_create_devices.sql", "", "", false},
		{"readme.txt", "", "", false},
		{"invalid.up.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parsed (%q, %q), want (%q, %q)", version, name, tt.wantVersion, tt.wantName)
			}
		})
	}
}
