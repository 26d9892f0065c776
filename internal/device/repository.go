package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByPlatform retrieves all devices surfaced under a platform.
	ListByPlatform(ctx context.Context, platform Platform) ([]Device, error)

	// ListByRoom retrieves all devices in a specific room.
	ListByRoom(ctx context.Context, room string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState merges state fields into the device's stored state.
	// This is optimised for frequent state changes from polling.
	UpdateState(ctx context.Context, id string, state State) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// deviceColumns is the column list shared by all device SELECT queries.
const deviceColumns = `id, topic, type_suffix, type_code, platform, name, room,
	online, brightness, state, raw_state, state_updated_at, last_seen, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`
	return r.queryDevices(ctx, query)
}

// ListByPlatform retrieves all devices surfaced under a platform.
func (r *SQLiteRepository) ListByPlatform(ctx context.Context, platform Platform) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE platform = ? ORDER BY name`
	return r.queryDevices(ctx, query, string(platform))
}

// ListByRoom retrieves all devices in a specific room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, room string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE room = ? ORDER BY name`
	return r.queryDevices(ctx, query, room)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	stateJSON, err := json.Marshal(device.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, topic, type_suffix, type_code, platform, name, room,
			online, brightness, state, raw_state, state_updated_at, last_seen,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Topic,
		device.TypeSuffix,
		device.TypeCode,
		string(device.Platform),
		device.Name,
		device.Room,
		boolToInt(device.Online),
		boolToInt(device.Brightness),
		string(stateJSON),
		device.RawState,
		nullableTime(device.StateUpdatedAt),
		nullableTime(device.LastSeen),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		// Check for unique constraint violation
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	stateJSON, err := json.Marshal(device.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			topic = ?, type_suffix = ?, type_code = ?, platform = ?,
			name = ?, room = ?, online = ?, brightness = ?,
			state = ?, raw_state = ?, state_updated_at = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.Topic,
		device.TypeSuffix,
		device.TypeCode,
		string(device.Platform),
		device.Name,
		device.Room,
		boolToInt(device.Online),
		boolToInt(device.Brightness),
		string(stateJSON),
		device.RawState,
		nullableTime(device.StateUpdatedAt),
		nullableTime(device.LastSeen),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdateState merges the given state fields into the device's existing state.
// This allows partial updates (e.g., updating "on" without losing "bri").
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	// Use json_patch to merge new state into existing state.
	// json_patch(target, patch) applies patch keys to target, preserving
	// existing keys not present in patch.
	query := `
		UPDATE devices
		SET state = json_patch(COALESCE(state, '{}'), ?),
		    state_updated_at = ?,
		    updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(stateJSON),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var room sql.NullString
	var stateUpdatedAt, lastSeen sql.NullString
	var stateJSON string
	var online, brightness int
	var platform string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Topic,
		&d.TypeSuffix,
		&d.TypeCode,
		&platform,
		&d.Name,
		&room,
		&online,
		&brightness,
		&stateJSON,
		&d.RawState,
		&stateUpdatedAt,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Platform = Platform(platform)
	d.Online = online != 0
	d.Brightness = brightness != 0

	if room.Valid {
		d.Room = room.String
	}

	// Parse timestamps
	if stateUpdatedAt.Valid {
		t, err := time.Parse(time.RFC3339, stateUpdatedAt.String)
		if err == nil {
			d.StateUpdatedAt = &t
		}
	}
	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err == nil {
			d.LastSeen = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(stateJSON), &d.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	return &d, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
