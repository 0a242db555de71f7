package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownField is returned when Complete receives a field the queue does not store.
	ErrUnknownField = errors.New("unknown queue field")
	// ErrUnknownMode is returned for an unsupported count or pop mode.
	ErrUnknownMode = errors.New("unsupported queue mode")
	// ErrInvalidStatus is returned for a status transition the queue does not allow.
	ErrInvalidStatus = errors.New("invalid status transition")
)

const itemSelect = `SELECT id, created_at, snapshot_id, project_id, project_name, data_week, filename,
	file_hash, transform_status, transform_info, output_filenames, content_weeks, olap_sync,
	started_at, finished_at FROM queue_items`

// modeCondition maps a selection mode to its WHERE clause.
func modeCondition(mode string) (string, error) {
	switch mode {
	case ModeEnqueued, ModeProcessing, ModeFailed, StatusTransformed:
		return "transform_status = '" + mode + "'", nil
	case ModeSyncReady:
		return "transform_status = 'transformed' AND olap_sync = 0", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Push appends an enqueued item and returns its id.
func (db *DB) Push(item NewItem) (int64, error) {
	var id int64
	err := db.withLock(func() error {
		res, err := db.conn.Exec(
			`INSERT INTO queue_items (created_at, snapshot_id, project_id, project_name, data_week, filename, file_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			now(), item.SnapshotID, item.ProjectID, item.ProjectName, item.DataWeek, item.Filename, item.FileHash,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Count returns the number of items selected by mode.
func (db *DB) Count(mode string) (int, error) {
	cond, err := modeCondition(mode)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.conn.QueryRow("SELECT COUNT(*) FROM queue_items WHERE " + cond).Scan(&n)
	return n, err
}

// PushAll enqueues items in one transaction and returns how many were
// inserted. An item already queued for the same snapshot, project, week,
// file name and hash is skipped, so a rerun completes a partial enqueue.
func (db *DB) PushAll(items []NewItem) (int, error) {
	var n int
	err := db.withTx(func(tx *sql.Tx) error {
		created := now()
		for _, item := range items {
			var exists int
			err := tx.QueryRow(
				`SELECT COUNT(*) FROM queue_items WHERE snapshot_id = ? AND project_id = ? AND data_week = ?
				AND filename = ? AND file_hash = ?`,
				item.SnapshotID, item.ProjectID, item.DataWeek, item.Filename, item.FileHash,
			).Scan(&exists)
			if err != nil {
				return err
			}
			if exists > 0 {
				continue
			}
			_, err = tx.Exec(
				`INSERT INTO queue_items (created_at, snapshot_id, project_id, project_name, data_week, filename, file_hash)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				created, item.SnapshotID, item.ProjectID, item.ProjectName, item.DataWeek, item.Filename, item.FileHash,
			)
			if err != nil {
				return fmt.Errorf("pushing %s: %w", item.Filename, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Pop returns the oldest item selected by mode, or nil when there is none.
// In ModeEnqueued the item is flipped to processing. ModeSyncReady does not
// mutate the item.
func (db *DB) Pop(mode string) (*QueueItem, error) {
	switch mode {
	case ModeEnqueued:
	case ModeSyncReady:
		return db.PopSyncReady(0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	var item *QueueItem
	err := db.withTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(itemSelect + " WHERE transform_status = 'enqueued' ORDER BY id LIMIT 1")
		it, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		ts := now()
		if _, err := tx.Exec(
			"UPDATE queue_items SET transform_status = 'processing', started_at = ? WHERE id = ?", ts, it.ID,
		); err != nil {
			return err
		}
		it.Status = StatusProcessing
		it.StartedAt = &ts
		item = it
		return nil
	})
	return item, err
}

// PopSyncReady returns the oldest sync-ready item with an id greater than
// afterID, or nil. Callers pass the last id they handled to walk the
// backlog without revisiting items that failed to sync.
func (db *DB) PopSyncReady(afterID int64) (*QueueItem, error) {
	var item *QueueItem
	err := db.withLock(func() error {
		row := db.conn.QueryRow(itemSelect+
			" WHERE transform_status = 'transformed' AND olap_sync = 0 AND id > ? ORDER BY id LIMIT 1", afterID)
		it, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		item = it
		return err
	})
	return item, err
}

// Complete sets the terminal status of a processing item and attaches
// result fields.
// Field keys are the Field* constants; list fields take JSON arrays.
func (db *DB) Complete(id int64, status string, fields map[string]string) error {
	if status != StatusTransformed && status != StatusFailed {
		return fmt.Errorf("%w: complete with %q", ErrInvalidStatus, status)
	}
	sets := "transform_status = ?, finished_at = ?"
	args := []any{status, now()}
	for _, key := range []string{FieldTransformInfo, FieldOutputFilenames, FieldContentWeeks} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if key != FieldTransformInfo && !json.Valid([]byte(v)) {
			return fmt.Errorf("field %s: not a JSON list", key)
		}
		sets += ", " + key + " = ?"
		args = append(args, v)
	}
	for key := range fields {
		switch key {
		case FieldTransformInfo, FieldOutputFilenames, FieldContentWeeks:
		default:
			return fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
	}

	return db.withLock(func() error {
		res, err := db.conn.Exec("UPDATE queue_items SET "+sets+" WHERE id = ? AND transform_status = 'processing'", append(args, id)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n > 0 {
			return err
		}
		var current string
		err = db.conn.QueryRow("SELECT transform_status FROM queue_items WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: item %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: item %d is %s, not processing", ErrInvalidStatus, id, current)
	})
}

// MarkSynced sets the sync marker of a transformed item.
func (db *DB) MarkSynced(id int64) error {
	return db.withLock(func() error {
		res, err := db.conn.Exec("UPDATE queue_items SET olap_sync = 1 WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
}

// ReclaimStale returns processing items started more than lease ago to
// enqueued and reports how many were reclaimed.
func (db *DB) ReclaimStale(lease time.Duration) (int, error) {
	if lease <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-lease).Format(time.RFC3339)
	var n int64
	err := db.withLock(func() error {
		res, err := db.conn.Exec(
			`UPDATE queue_items SET transform_status = 'enqueued', started_at = NULL
			WHERE transform_status = 'processing' AND (started_at IS NULL OR started_at < ?)`, cutoff,
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

// Requeue returns a processing or failed item to enqueued.
func (db *DB) Requeue(id int64) error {
	return db.withTx(func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRow("SELECT transform_status FROM queue_items WHERE id = ?", id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: item %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if status != StatusProcessing && status != StatusFailed {
			return fmt.Errorf("%w: item %d is %s", ErrInvalidStatus, id, status)
		}
		_, err = tx.Exec(
			`UPDATE queue_items SET transform_status = 'enqueued', started_at = NULL, finished_at = NULL,
			transform_info = '', output_filenames = '[]', content_weeks = '[]' WHERE id = ?`, id,
		)
		return err
	})
}

// GetItem returns one queue item.
func (db *DB) GetItem(id int64) (*QueueItem, error) {
	item, err := scanItem(db.conn.QueryRow(itemSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	return item, err
}

// ListItems returns items newest first. An empty mode lists every item.
func (db *DB) ListItems(mode string, limit int) ([]QueueItem, error) {
	query := itemSelect
	if mode != "" {
		cond, err := modeCondition(mode)
		if err != nil {
			return nil, err
		}
		query += " WHERE " + cond
	}
	query += " ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueueItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// AllItems returns every item in id order.
func (db *DB) AllItems() ([]QueueItem, error) {
	items, err := db.ListItems("", 0)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// GetQueueStats counts items by state.
func (db *DB) GetQueueStats() (*QueueStats, error) {
	s := &QueueStats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM queue_items WHERE transform_status = 'enqueued'", &s.Enqueued},
		{"SELECT COUNT(*) FROM queue_items WHERE transform_status = 'processing'", &s.Processing},
		{"SELECT COUNT(*) FROM queue_items WHERE transform_status = 'transformed'", &s.Transformed},
		{"SELECT COUNT(*) FROM queue_items WHERE transform_status = 'failed'", &s.Failed},
		{"SELECT COUNT(*) FROM queue_items WHERE transform_status = 'transformed' AND olap_sync = 0", &s.SyncReady},
		{"SELECT COUNT(*) FROM queue_items WHERE olap_sync = 1", &s.Synced},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ListField encodes a list value for Complete.
func ListField(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*QueueItem, error) {
	var it QueueItem
	var outputs, weeks string
	if err := row.Scan(&it.ID, &it.CreatedAt, &it.SnapshotID, &it.ProjectID, &it.ProjectName,
		&it.DataWeek, &it.Filename, &it.FileHash, &it.Status, &it.TransformInfo, &outputs, &weeks,
		&it.OlapSync, &it.StartedAt, &it.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outputs), &it.OutputFilenames); err != nil {
		return nil, fmt.Errorf("decoding output filenames of item %d: %w", it.ID, err)
	}
	if err := json.Unmarshal([]byte(weeks), &it.ContentWeeks); err != nil {
		return nil, fmt.Errorf("decoding content weeks of item %d: %w", it.ID, err)
	}
	return &it, nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	return nil
}
