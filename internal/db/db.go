package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/treyturner/ninjaone-e2e/internal/models"
	_ "modernc.org/sqlite"
)

// ErrDuplicateName is returned when a write would give two devices the same
// system_name.
var ErrDuplicateName = errors.New("system_name already in use")

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// :memory: databases are per connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			id           TEXT PRIMARY KEY,
			system_name  TEXT NOT NULL,
			type         TEXT NOT NULL,
			hdd_capacity TEXT NOT NULL DEFAULT ''
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_system_name ON devices(system_name);
		CREATE INDEX IF NOT EXISTS idx_devices_type ON devices(type);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// Create inserts a new device record. Returns ErrDuplicateName if another
// device already uses dev.SystemName.
func (d *DB) Create(dev *models.Device) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := nameTaken(tx, dev.SystemName, ""); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO devices (id, system_name, type, hdd_capacity)
		VALUES (?, ?, ?, ?)`,
		dev.ID, dev.SystemName, string(dev.Type), string(dev.HDDCapacity),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns the device with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetByID(id string) (*models.Device, error) {
	row := d.conn.QueryRow(`
		SELECT id, system_name, type, hdd_capacity
		FROM devices WHERE id = ?`, id)
	return scan(row)
}

// FindByName returns the device named name, or sql.ErrNoRows if none is.
func (d *DB) FindByName(name string) (*models.Device, error) {
	row := d.conn.QueryRow(`
		SELECT id, system_name, type, hdd_capacity
		FROM devices WHERE system_name = ?`, name)
	return scan(row)
}

// List returns all devices in insertion order, optionally filtered by type.
func (d *DB) List(typ models.Type) ([]*models.Device, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if typ != "" {
		rows, err = d.conn.Query(`
			SELECT id, system_name, type, hdd_capacity
			FROM devices WHERE type = ? ORDER BY rowid`, string(typ))
	} else {
		rows, err = d.conn.Query(`
			SELECT id, system_name, type, hdd_capacity
			FROM devices ORDER BY rowid`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		dev, err := scan(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// Update replaces all mutable fields for the device with dev.ID.
// Returns sql.ErrNoRows if no such device exists and ErrDuplicateName if the
// new name belongs to a different device.
func (d *DB) Update(dev *models.Device) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := nameTaken(tx, dev.SystemName, dev.ID); err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE devices
		SET system_name=?, type=?, hdd_capacity=?
		WHERE id=?`,
		dev.SystemName, string(dev.Type), string(dev.HDDCapacity), dev.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// Delete removes the device with the given ID.
// Returns sql.ErrNoRows if no such device exists.
func (d *DB) Delete(id string) error {
	res, err := d.conn.Exec(`DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByType returns the number of devices per canonical type.
func (d *DB) CountByType() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT type, COUNT(*) FROM devices GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// nameTaken returns ErrDuplicateName when a device other than exceptID is
// already called name.
func nameTaken(tx *sql.Tx, name, exceptID string) error {
	var id string
	err := tx.QueryRow(`SELECT id FROM devices WHERE system_name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if id != exceptID {
		return ErrDuplicateName
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Device, error) {
	var (
		dev           models.Device
		typ, capacity string
	)
	if err := s.Scan(&dev.ID, &dev.SystemName, &typ, &capacity); err != nil {
		return nil, err
	}
	dev.Type = models.Type(typ)
	dev.HDDCapacity = models.Capacity(capacity)
	return &dev, nil
}
