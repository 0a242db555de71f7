package database

import (
	"database/sql"
	"errors"
)

// SaveRunReport inserts or replaces a run report.
func (db *DB) SaveRunReport(r RunReport) error {
	return db.withLock(func() error {
		_, err := db.conn.Exec(
			`INSERT OR REPLACE INTO run_reports (id, mode, dry_run, ok, started_at, finished_at, markdown)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Mode, boolInt(r.DryRun), boolInt(r.OK), r.StartedAt, r.FinishedAt, r.Markdown,
		)
		return err
	})
}

// GetRunReport returns a run report, or nil if it does not exist.
func (db *DB) GetRunReport(id string) (*RunReport, error) {
	row := db.conn.QueryRow(
		`SELECT id, mode, dry_run, ok, started_at, finished_at, markdown FROM run_reports WHERE id = ?`, id,
	)
	var r RunReport
	if err := row.Scan(&r.ID, &r.Mode, &r.DryRun, &r.OK, &r.StartedAt, &r.FinishedAt, &r.Markdown); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListRunReports returns the most recent run reports without their bodies.
func (db *DB) ListRunReports(limit int) ([]RunReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.Query(
		`SELECT id, mode, dry_run, ok, started_at, finished_at FROM run_reports
		ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []RunReport
	for rows.Next() {
		var r RunReport
		if err := rows.Scan(&r.ID, &r.Mode, &r.DryRun, &r.OK, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
