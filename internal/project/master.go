package project

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// Master-list columns, after the leading underscore is stripped.
const (
	colID          = "project_id"
	colName        = "project_name"
	colStatus      = "project_status"
	colIsActive    = "project_is_active"
	colTrackData   = "track_data"
	colStart       = "project_start_date"
	colEnd         = "project_end_date"
	colFolder      = "raw_folder_name"
	colTarget      = "project_target"
	colMethodology = "project_methodology"
	colBase        = "project_base"
	colMetadata    = "project_metadata"
)

var excludedStatuses = map[string]bool{"hidden": true, "deprecated": true}

// Metadata is the structured configuration blob embedded in the master list.
type Metadata struct {
	ProjectConfig []FormatConfig `json:"project_config"`
}

// LoadResult is a loaded catalog plus the rows that could not be used.
type LoadResult struct {
	Catalog  *Catalog
	Skipped  int
	Warnings []string
}

// LoadMaster reads the project master list (xlsx or csv). Only columns
// prefixed with "_" are used. Invalid rows are skipped with a warning.
func LoadMaster(path, sheet string) (*LoadResult, error) {
	tbl, err := table.LoadSheet(path, sheet)
	if err != nil {
		return nil, fmt.Errorf("loading master list %s: %w", path, err)
	}
	return FromTable(tbl)
}

// FromTable builds a catalog from an already-loaded master list.
func FromTable(tbl *table.Table) (*LoadResult, error) {
	rename := make(map[string]string)
	for _, h := range tbl.Header {
		if strings.HasPrefix(h, "_") {
			rename[h] = strings.TrimPrefix(h, "_")
		}
	}
	tbl.Rename(rename)
	if missing := tbl.Missing(colID, colName); len(missing) > 0 {
		return nil, fmt.Errorf("master list missing columns %v", missing)
	}

	res := &LoadResult{}
	var projects []Project
	for i := range tbl.Rows {
		p, ok, err := parseRow(tbl, i)
		if err != nil {
			res.Skipped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("row %d: %v", i+2, err))
			slog.Warn("skipping master list row", "row", i+2, "err", err)
			continue
		}
		if !ok {
			continue
		}
		projects = append(projects, p)
	}
	res.Catalog = NewCatalog(projects)
	return res, nil
}

func parseRow(tbl *table.Table, i int) (Project, bool, error) {
	get := func(col string) string { return strings.TrimSpace(tbl.Value(i, col)) }

	p := Project{
		ID:          get(colID),
		Name:        get(colName),
		Status:      get(colStatus),
		FolderName:  get(colFolder),
		Methodology: get(colMethodology),
	}
	if p.ID == "" {
		return p, false, fmt.Errorf("empty project id")
	}
	if excludedStatuses[strings.ToLower(p.Status)] {
		return p, false, nil
	}

	p.Active = parseFlag(get(colIsActive), strings.EqualFold(p.Status, "active"))
	p.TrackData = parseFlag(get(colTrackData), true)

	start, err := parseDate(get(colStart))
	if err != nil {
		return p, false, fmt.Errorf("project %s: start date: %w", p.ID, err)
	}
	if start == nil {
		return p, false, fmt.Errorf("project %s: missing start date", p.ID)
	}
	p.Start = *start
	if p.End, err = parseDate(get(colEnd)); err != nil {
		return p, false, fmt.Errorf("project %s: end date: %w", p.ID, err)
	}

	if p.Target, err = ParseTarget(get(colTarget)); err != nil {
		return p, false, fmt.Errorf("project %s: %w", p.ID, err)
	}

	if raw := get(colBase); raw != "" {
		base, ok := quality.ParseBase(raw)
		if !ok {
			return p, false, fmt.Errorf("project %s: unknown base %q", p.ID, raw)
		}
		p.Base = base
	}

	if raw := get(colMetadata); raw != "" {
		var md Metadata
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			return p, false, fmt.Errorf("project %s: invalid metadata: %w", p.ID, err)
		}
		p.Formats = md.ProjectConfig
	}
	return p, true, nil
}

// ParseTarget normalizes "90%", "90" and "0.9" to 0.9. Blank is zero.
func ParseTarget(s string) (float64, error) {
	v, ok, err := parseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("target: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return Fraction(v), nil
}

func parseFlag(s string, def bool) bool {
	if s == "" {
		return def
	}
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "t", "x":
		return true
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return false
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil, err
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}
