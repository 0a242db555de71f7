package scan

import "github.com/Dataste0/quality-pipeline/internal/database"

// NewFile is a valid file that appeared since the previous snapshot.
type NewFile struct {
	ProjectID   string
	ProjectName string
	DataWeek    string
	Filename    string
	Hash        string
}

// Diff returns the valid files of curr that are new relative to prev.
// Only entries with valid data whose folder fingerprint changed are
// compared, and files are matched by content fingerprint, so a renamed
// file with identical bytes is not new. An entry without a counterpart in
// prev contributes all of its valid files.
func Diff(prev, curr []database.SnapshotEntry) []NewFile {
	last := make(map[entryKey]database.SnapshotEntry, len(prev))
	for _, e := range prev {
		last[entryKey{e.ProjectID, e.DataWeek}] = e
	}

	var out []NewFile
	for _, e := range curr {
		if !e.HasWeeklyData {
			continue
		}
		p, ok := last[entryKey{e.ProjectID, e.DataWeek}]
		if ok && p.FolderHash == e.FolderHash {
			continue
		}
		seen := make(map[string]bool, len(p.ValidFiles))
		for _, f := range p.ValidFiles {
			seen[f.Hash] = true
		}
		for _, f := range e.ValidFiles {
			if seen[f.Hash] {
				continue
			}
			seen[f.Hash] = true
			out = append(out, NewFile{
				ProjectID:   e.ProjectID,
				ProjectName: e.ProjectName,
				DataWeek:    e.DataWeek,
				Filename:    f.Filename,
				Hash:        f.Hash,
			})
		}
	}
	return out
}
