package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines device persistence. The SQLite implementation is used in
// production; tests substitute an in-memory mock.
type Repository interface {
	// List returns every device with its features, ordered by name.
	List(ctx context.Context) ([]Device, error)

	// GetByExternalID returns ErrDeviceNotFound if no device matches.
	GetByExternalID(ctx context.Context, externalID string) (*Device, error)

	// Create inserts a device and its features atomically.
	// Returns ErrDeviceExists on id, external id or selector collision.
	Create(ctx context.Context, device *Device) error

	// Delete removes a device and its features.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateFeatureValue records a feature's latest value.
	// Returns ErrFeatureNotFound if the feature does not exist.
	UpdateFeatureValue(ctx context.Context, featureExternalID string, value float64, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, service_id, name, model, external_id, selector, should_poll, created_at, updated_at`

const featureColumns = `device_id, name, category, type, external_id, selector, read_only, has_feedback,
	min_value, max_value, unit, last_value, last_value_at`

// List returns every device with its features.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY name, external_id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	byID := make(map[string]int)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		byID[d.ID] = len(devices)
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	rows.Close()

	features, err := r.queryFeatures(ctx, `SELECT `+featureColumns+` FROM device_features ORDER BY device_id, position`)
	if err != nil {
		return nil, err
	}
	for deviceID, fs := range features {
		if i, ok := byID[deviceID]; ok {
			devices[i].Features = fs
		}
	}
	return devices, nil
}

// GetByExternalID returns one device with its features.
func (r *SQLiteRepository) GetByExternalID(ctx context.Context, externalID string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE external_id = ?`, externalID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by external id: %w", err)
	}

	features, err := r.queryFeatures(ctx,
		`SELECT `+featureColumns+` FROM device_features WHERE device_id = ? ORDER BY position`, d.ID)
	if err != nil {
		return nil, err
	}
	d.Features = features[d.ID]
	return d, nil
}

// Create inserts the device row and one row per feature in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ServiceID, d.Name, d.Model, d.ExternalID, d.Selector, boolToInt(d.ShouldPoll),
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	for i, f := range d.Features {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO device_features (
				device_id, position, name, category, type, external_id, selector,
				read_only, has_feedback, min_value, max_value, unit, last_value, last_value_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i, f.Name, string(f.Category), string(f.Type), f.ExternalID, f.Selector,
			boolToInt(f.ReadOnly), boolToInt(f.HasFeedback), f.Min, f.Max,
			nullableString(string(f.Unit)), f.LastValue, nullableTime(f.LastValueChanged),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: feature %s", ErrDeviceExists, f.ExternalID)
			}
			return fmt.Errorf("inserting feature %s: %w", f.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device: %w", err)
	}
	return nil
}

// Delete removes a device; features go with it via ON DELETE CASCADE.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result, ErrDeviceNotFound)
}

// UpdateFeatureValue records a feature's latest value and bumps the owning
// device's updated_at.
func (r *SQLiteRepository) UpdateFeatureValue(ctx context.Context, featureExternalID string, value float64, at time.Time) error {
	stamp := at.UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE device_features SET last_value = ?, last_value_at = ? WHERE external_id = ?`,
		value, stamp, featureExternalID)
	if err != nil {
		return fmt.Errorf("updating feature value: %w", err)
	}
	if err := requireRow(result, ErrFeatureNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE devices SET updated_at = ?
		WHERE id = (SELECT device_id FROM device_features WHERE external_id = ?)`,
		stamp, featureExternalID); err != nil {
		return fmt.Errorf("touching device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing feature value: %w", err)
	}
	return nil
}

// queryFeatures returns features grouped by device id, in position order.
func (r *SQLiteRepository) queryFeatures(ctx context.Context, query string, args ...any) (map[string][]Feature, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying features: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Feature)
	for rows.Next() {
		var (
			deviceID, category, typ string
			readOnly, hasFeedback   int
			unit, lastValueAt       sql.NullString
			lastValue               sql.NullFloat64
			f                       Feature
		)
		if err := rows.Scan(&deviceID, &f.Name, &category, &typ, &f.ExternalID, &f.Selector,
			&readOnly, &hasFeedback, &f.Min, &f.Max, &unit, &lastValue, &lastValueAt); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		f.Category = Category(category)
		f.Type = FeatureType(typ)
		f.ReadOnly = readOnly != 0
		f.HasFeedback = hasFeedback != 0
		f.Unit = Unit(unit.String)
		f.LastValue = lastValue.Float64
		if lastValueAt.Valid {
			if t, err := time.Parse(time.RFC3339, lastValueAt.String); err == nil {
				f.LastValueChanged = &t
			}
		}
		out[deviceID] = append(out[deviceID], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating features: %w", err)
	}
	return out, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(s rowScanner) (*Device, error) {
	var d Device
	var shouldPoll int
	var createdAt, updatedAt string

	if err := s.Scan(&d.ID, &d.ServiceID, &d.Name, &d.Model, &d.ExternalID, &d.Selector,
		&shouldPoll, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.ShouldPoll = shouldPoll != 0

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// nullableString maps "" to NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
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
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
