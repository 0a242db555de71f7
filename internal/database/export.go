package database

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

// SnapshotColumns is the column layout of the exported snapshot log.
var SnapshotColumns = []string{
	"timestamp", "snapshot_id", "project_id", "project_name", "data_week", "folder_hash",
	"has_any_data", "has_weekly_data", "file_number", "file_list", "valid_files_number", "valid_files_list",
}

// QueueColumns is the column layout of the exported work queue.
var QueueColumns = []string{
	"item_id", "timestamp", "snapshot_id", "project_id", "project_name", "data_week", "filename",
	"transform_status", "output_filenames", "content_weeks", "olap_sync",
}

// ExportSnapshots writes every snapshot entry as CSV.
func (db *DB) ExportSnapshots(w io.Writer) (int, error) {
	entries, err := db.AllSnapshotEntries()
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapshotColumns); err != nil {
		return 0, err
	}
	for _, e := range entries {
		files, err := encodeFiles(e.Files)
		if err != nil {
			return 0, err
		}
		valid, err := encodeFiles(e.ValidFiles)
		if err != nil {
			return 0, err
		}
		if err := cw.Write([]string{
			e.CreatedAt,
			strconv.FormatInt(e.SnapshotID, 10),
			e.ProjectID,
			e.ProjectName,
			e.DataWeek,
			e.FolderHash,
			strconv.FormatBool(e.HasAnyData),
			strconv.FormatBool(e.HasWeeklyData),
			strconv.Itoa(len(e.Files)),
			files,
			strconv.Itoa(len(e.ValidFiles)),
			valid,
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(entries), cw.Error()
}

// ExportQueue writes every queue item as CSV.
func (db *DB) ExportQueue(w io.Writer) (int, error) {
	items, err := db.AllItems()
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(QueueColumns); err != nil {
		return 0, err
	}
	for _, it := range items {
		outputs, _ := json.Marshal(it.OutputFilenames)
		weeks, _ := json.Marshal(it.ContentWeeks)
		sync := ""
		if it.OlapSync {
			sync = "true"
		}
		if err := cw.Write([]string{
			strconv.FormatInt(it.ID, 10),
			it.CreatedAt,
			strconv.FormatInt(it.SnapshotID, 10),
			it.ProjectID,
			it.ProjectName,
			it.DataWeek,
			it.Filename,
			it.Status,
			string(outputs),
			string(weeks),
			sync,
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(items), cw.Error()
}
