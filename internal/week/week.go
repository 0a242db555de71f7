// Package week implements the Friday-anchored reporting calendar.
//
// A reporting week runs Saturday through Friday and is identified by its
// Friday ("week ending") date. Raw vendor folders are named after it
// ("WE 2025.01.03"), and canonical output is partitioned by it.
package week

import (
	"fmt"
	"strings"
	"time"
)

const (
	isoLayout     = "2006-01-02"
	folderLayout  = "2006.01.02"
	compactLayout = "20060102"
	folderPrefix  = "WE "
)

// Ending returns the Friday on or after t, truncated to midnight UTC.
func Ending(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// Range returns every week ending from Ending(start) to Ending(end), inclusive.
// It returns nil when end precedes start.
func Range(start, end time.Time) []time.Time {
	first := Ending(start)
	last := Ending(end)
	if last.Before(first) {
		return nil
	}
	var weeks []time.Time
	for w := first; !w.After(last); w = w.AddDate(0, 0, 7) {
		weeks = append(weeks, w)
	}
	return weeks
}

// Format returns the ISO date (yyyy-mm-dd) of a week ending.
func Format(t time.Time) string {
	return t.Format(isoLayout)
}

// Parse parses an ISO date and snaps it to its week ending.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(isoLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing week %q: %w", s, err)
	}
	return Ending(t), nil
}

// Compact returns the yyyymmdd form used in output file names.
func Compact(t time.Time) string {
	return t.Format(compactLayout)
}

// FolderName returns the raw-data folder name for a week, e.g. "WE 2025.01.03".
func FolderName(t time.Time) string {
	return folderPrefix + t.Format(folderLayout)
}

// ParseFolderName is the inverse of FolderName.
func ParseFolderName(name string) (time.Time, error) {
	if !strings.HasPrefix(name, folderPrefix) {
		return time.Time{}, fmt.Errorf("not a week folder: %q", name)
	}
	t, err := time.Parse(folderLayout, strings.TrimPrefix(name, folderPrefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing week folder %q: %w", name, err)
	}
	return t, nil
}

// IsEnding reports whether t falls on a Friday.
func IsEnding(t time.Time) bool {
	return t.Weekday() == time.Friday
}
