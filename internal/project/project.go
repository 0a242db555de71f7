// Package project loads project descriptors from the master list.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Dataste0/quality-pipeline/internal/quality"
)

// ErrFolderNotFound is returned when a project has no raw-data folder.
var ErrFolderNotFound = errors.New("project folder not found")

// Project is an immutable project descriptor.
type Project struct {
	ID          string
	Name        string
	Status      string
	Active      bool
	TrackData   bool
	Start       time.Time
	End         *time.Time
	FolderName  string
	Target      float64
	Methodology string
	Base        quality.Base
	Formats     []FormatConfig
}

// Window returns the scan window [Start, End or now].
func (p Project) Window(now time.Time) (time.Time, time.Time) {
	end := now
	if p.End != nil && p.End.Before(now) {
		end = *p.End
	}
	return p.Start, end
}

// Folder resolves the project's raw-data folder under root: the configured
// folder name, or the first directory named "<id>_...".
func (p Project) Folder(root string) (string, error) {
	if p.FolderName != "" {
		dir := filepath.Join(root, p.FolderName)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
		return "", fmt.Errorf("%w: %s", ErrFolderNotFound, dir)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading raw root %s: %w", root, err)
	}
	prefix := p.ID + "_"
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s_*", ErrFolderNotFound, filepath.Join(root, p.ID))
	}
	sort.Strings(names)
	return filepath.Join(root, names[0]), nil
}

// DefaultFolderName is the folder name used when creating a missing project folder.
func (p Project) DefaultFolderName() string {
	if p.FolderName != "" {
		return p.FolderName
	}
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(p.Name))
	return p.ID + "_" + name
}

// FormatByFingerprint returns the first format whose expected header
// fingerprint equals fp.
func (p Project) FormatByFingerprint(fp string) (FormatConfig, bool) {
	for _, f := range p.Formats {
		if f.Fingerprint != "" && strings.EqualFold(f.Fingerprint, fp) {
			return f, true
		}
	}
	return FormatConfig{}, false
}

// Catalog is the set of projects loaded for one run.
type Catalog struct {
	projects []Project
	byID     map[string]int
}

// NewCatalog builds a catalog. Later duplicates of an id are ignored.
func NewCatalog(projects []Project) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(projects))}
	for _, p := range projects {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.projects)
		c.projects = append(c.projects, p)
	}
	return c
}

// Get returns a project by id.
func (c *Catalog) Get(id string) (Project, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Project{}, false
	}
	return c.projects[i], true
}

// All returns every project in master-list order.
func (c *Catalog) All() []Project {
	out := make([]Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// Tracked returns the projects whose raw data should be scanned.
func (c *Catalog) Tracked() []Project {
	var out []Project
	for _, p := range c.projects {
		if p.TrackData {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of projects.
func (c *Catalog) Len() int {
	return len(c.projects)
}
