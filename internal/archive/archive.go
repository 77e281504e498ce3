// Package archive keeps fetched area snapshots in SQLite so later sessions
// can pre-seed the year cache without the network.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"chronomap/internal/mapstate"
)

// DB is a SQLite archive of area snapshots, one row per year.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates the archive at path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS area_snapshots (
		year INTEGER PRIMARY KEY,
		territories INTEGER NOT NULL,
		payload TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type snapshotRow struct {
	Year        int    `db:"year"`
	Territories int    `db:"territories"`
	Payload     string `db:"payload"`
	SavedAt     int64  `db:"saved_at"`
}

// SaveArea stores snap for year, replacing an earlier copy. The payload
// keeps the wire tuple form.
func (db *DB) SaveArea(ctx context.Context, year int, snap mapstate.AreaSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", year, err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO area_snapshots (year, territories, payload, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET territories = excluded.territories,
			payload = excluded.payload, saved_at = excluded.saved_at`,
		year, len(snap), string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %d: %w", year, err)
	}
	return nil
}

// LoadArea returns the archived snapshot of year; ok is false when none exists.
func (db *DB) LoadArea(ctx context.Context, year int) (snap mapstate.AreaSnapshot, ok bool, err error) {
	var rows []snapshotRow
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT year, territories, payload, saved_at FROM area_snapshots WHERE year = ?", year); err != nil {
		return nil, false, fmt.Errorf("load snapshot %d: %w", year, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(rows[0].Payload), &snap); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %d: %w", year, err)
	}
	return snap, true, nil
}

// LoadAreas returns every archived snapshot keyed by year. Rows that fail
// to decode are skipped.
func (db *DB) LoadAreas(ctx context.Context) (map[int]mapstate.AreaSnapshot, error) {
	var rows []snapshotRow
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT year, territories, payload, saved_at FROM area_snapshots ORDER BY year"); err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	out := make(map[int]mapstate.AreaSnapshot, len(rows))
	for _, r := range rows {
		var snap mapstate.AreaSnapshot
		if err := json.Unmarshal([]byte(r.Payload), &snap); err != nil {
			continue
		}
		out[r.Year] = snap
	}
	return out, nil
}

// Years lists the archived years in ascending order.
func (db *DB) Years(ctx context.Context) ([]int, error) {
	var years []int
	err := db.conn.SelectContext(ctx, &years, "SELECT year FROM area_snapshots ORDER BY year")
	return years, err
}
