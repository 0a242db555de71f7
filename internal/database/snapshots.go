package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const entrySelect = `SELECT e.id, e.snapshot_id, s.created_at, e.project_id, e.project_name, e.data_week,
	e.folder_hash, e.has_any_data, e.has_weekly_data, e.file_list, e.valid_files_list
	FROM snapshot_entries e JOIN snapshots s ON s.id = e.snapshot_id`

// AddSnapshot stores entries under a new snapshot id and returns it. The
// id is assigned inside the same locked transaction as the inserts. An
// empty scan is not written and returns 0.
func (db *DB) AddSnapshot(entries []SnapshotEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	var id int64
	err := db.withTx(func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.Exec("INSERT INTO snapshots (created_at) VALUES (?)", ts)
		if err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO snapshot_entries
			(snapshot_id, project_id, project_name, data_week, folder_hash, has_any_data,
			has_weekly_data, file_number, file_list, valid_files_number, valid_files_list)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			files, err := encodeFiles(e.Files)
			if err != nil {
				return err
			}
			valid, err := encodeFiles(e.ValidFiles)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(id, e.ProjectID, e.ProjectName, e.DataWeek, e.FolderHash,
				boolInt(e.HasAnyData), boolInt(e.HasWeeklyData), len(e.Files), files,
				len(e.ValidFiles), valid); err != nil {
				return fmt.Errorf("inserting entry %s/%s: %w", e.ProjectID, e.DataWeek, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LatestSnapshotID returns the newest snapshot id, or 0 if there is none.
func (db *DB) LatestSnapshotID() (int64, error) {
	var id sql.NullInt64
	if err := db.conn.QueryRow("SELECT MAX(id) FROM snapshots").Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// PreviousSnapshotID returns the newest snapshot id older than id, or 0.
func (db *DB) PreviousSnapshotID(id int64) (int64, error) {
	var prev sql.NullInt64
	if err := db.conn.QueryRow("SELECT MAX(id) FROM snapshots WHERE id < ?", id).Scan(&prev); err != nil {
		return 0, err
	}
	return prev.Int64, nil
}

// GetSnapshot returns the entries of a snapshot ordered by project and week.
func (db *DB) GetSnapshot(id int64) ([]SnapshotEntry, error) {
	rows, err := db.conn.Query(entrySelect+" WHERE e.snapshot_id = ? ORDER BY e.project_id, e.data_week", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListSnapshots returns snapshot summaries, newest first.
func (db *DB) ListSnapshots(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT s.id, s.created_at, COUNT(e.id), COUNT(DISTINCT e.project_id),
		COALESCE(SUM(e.has_weekly_data), 0), COALESCE(SUM(e.valid_files_number), 0)
		FROM snapshots s LEFT JOIN snapshot_entries e ON e.snapshot_id = s.id
		GROUP BY s.id ORDER BY s.id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Entries, &s.Projects, &s.WeeksWithData, &s.ValidFiles); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllSnapshotEntries returns every stored entry in snapshot order.
func (db *DB) AllSnapshotEntries() ([]SnapshotEntry, error) {
	rows, err := db.conn.Query(entrySelect + " ORDER BY e.snapshot_id, e.id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]SnapshotEntry, error) {
	var out []SnapshotEntry
	for rows.Next() {
		var e SnapshotEntry
		var files, valid string
		if err := rows.Scan(&e.ID, &e.SnapshotID, &e.CreatedAt, &e.ProjectID, &e.ProjectName,
			&e.DataWeek, &e.FolderHash, &e.HasAnyData, &e.HasWeeklyData, &files, &valid); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(files), &e.Files); err != nil {
			return nil, fmt.Errorf("decoding file list of entry %d: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(valid), &e.ValidFiles); err != nil {
			return nil, fmt.Errorf("decoding valid file list of entry %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func encodeFiles(files []FileRecord) (string, error) {
	if files == nil {
		files = []FileRecord{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
