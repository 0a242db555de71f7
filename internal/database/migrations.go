package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "snapshot and queue schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id INTEGER NOT NULL REFERENCES snapshots(id),
    project_id TEXT NOT NULL,
    project_name TEXT NOT NULL DEFAULT '',
    data_week TEXT NOT NULL,
    folder_hash TEXT NOT NULL,
    has_any_data INTEGER NOT NULL DEFAULT 0,
    has_weekly_data INTEGER NOT NULL DEFAULT 0,
    file_number INTEGER NOT NULL DEFAULT 0,
    file_list TEXT NOT NULL DEFAULT '[]',
    valid_files_number INTEGER NOT NULL DEFAULT 0,
    valid_files_list TEXT NOT NULL DEFAULT '[]',
    UNIQUE (snapshot_id, project_id, data_week)
);

CREATE TABLE IF NOT EXISTS queue_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    snapshot_id INTEGER NOT NULL,
    project_id TEXT NOT NULL,
    project_name TEXT NOT NULL DEFAULT '',
    data_week TEXT NOT NULL,
    filename TEXT NOT NULL,
    file_hash TEXT NOT NULL DEFAULT '',
    transform_status TEXT NOT NULL DEFAULT 'enqueued'
        CHECK(transform_status IN ('enqueued', 'processing', 'transformed', 'failed')),
    transform_info TEXT NOT NULL DEFAULT '',
    output_filenames TEXT NOT NULL DEFAULT '[]',
    content_weeks TEXT NOT NULL DEFAULT '[]',
    olap_sync INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_snapshot_entries_snapshot ON snapshot_entries(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_queue_items_status ON queue_items(transform_status, olap_sync);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "queue processing timestamps",
		Up: func(tx *sql.Tx) error {
			for _, col := range []string{"started_at", "finished_at"} {
				exists, err := columnExists(tx, "queue_items", col)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := tx.Exec("ALTER TABLE queue_items ADD COLUMN " + col + " TEXT"); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "run reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS run_reports (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    dry_run INTEGER NOT NULL DEFAULT 0,
    ok INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    markdown TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_run_reports_started ON run_reports(started_at);
`)
			return err
		},
	},
}

// columnExists keeps ALTER TABLE migrations re-runnable.
func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	var n int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n)
	return n > 0, err
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
