// Package storage writes one-shot sqlite snapshots of resolved region
// series. The in-memory selection cache never touches this; snapshots exist
// so fetched data can be handed to other tools (sqlite3, spreadsheets).
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/aonuma/popscope/pkg/series"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS regions (
  code        INTEGER PRIMARY KEY,
  name        TEXT NOT NULL,
  exported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS series_points (
  region_code INTEGER NOT NULL REFERENCES regions(code),
  year        INTEGER NOT NULL,
  value       INTEGER NOT NULL,
  exported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(region_code, year)
);
CREATE INDEX IF NOT EXISTS idx_points_region ON series_points(region_code);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SnapshotSeries upserts one region and all of its points in a single
// transaction. Re-exporting the same series is idempotent per (region,
// year).
func (d *DB) SnapshotSeries(ctx context.Context, rs series.RegionSeries) (err error) {
	if rs.Code <= 0 {
		return fmt.Errorf("storage: invalid region code %d", rs.Code)
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO regions(code, name, exported_at) VALUES(?,?,CURRENT_TIMESTAMP)
ON CONFLICT(code) DO UPDATE SET name = excluded.name, exported_at = CURRENT_TIMESTAMP`, rs.Code, rs.Name)
	if err != nil {
		return err
	}

	for _, p := range rs.Points {
		_, err = tx.ExecContext(ctx, `INSERT INTO series_points(region_code, year, value, exported_at) VALUES(?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(region_code, year) DO UPDATE SET value = excluded.value, exported_at = CURRENT_TIMESTAMP`, rs.Code, p.Year, p.Value)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSeries reads one region's snapshot back, points ascending by year.
func (d *DB) GetSeries(ctx context.Context, code int) (series.RegionSeries, error) {
	rs := series.RegionSeries{Code: code}

	err := d.sql.QueryRowContext(ctx, "SELECT name FROM regions WHERE code = ?", code).Scan(&rs.Name)
	if err != nil {
		return rs, err
	}

	rows, err := d.sql.QueryContext(ctx, "SELECT year, value FROM series_points WHERE region_code = ?", code)
	if err != nil {
		return rs, err
	}
	defer rows.Close()

	for rows.Next() {
		var p series.Point
		if err := rows.Scan(&p.Year, &p.Value); err != nil {
			return rs, err
		}
		rs.Points = append(rs.Points, p)
	}
	if err := rows.Err(); err != nil {
		return rs, err
	}

	sort.Slice(rs.Points, func(i, j int) bool { return rs.Points[i].Year < rs.Points[j].Year })
	return rs, nil
}

// ListRegions returns every snapshotted region, ascending by code.
func (d *DB) ListRegions(ctx context.Context) ([]series.Region, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT code, name FROM regions ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []series.Region
	for rows.Next() {
		var r series.Region
		if err := rows.Scan(&r.Code, &r.Name); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}
