// Package adapter maps vendor export schemas onto the intermediate layouts
// consumed by the base normalizers.
//
// Adapters are looked up by format id in a closed Registry. The ADHOC id
// resolves to an adapter registered for a specific project id instead.
package adapter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

var (
	// ErrUnknownFormat is returned for a format id with no registered adapter.
	ErrUnknownFormat = errors.New("unknown format")
	// ErrNoAdhoc is returned when ADHOC is requested for a project without a plugin.
	ErrNoAdhoc = errors.New("no adhoc adapter registered")
	// ErrMissingColumns is returned when the raw table lacks required columns.
	ErrMissingColumns = errors.New("missing columns")
	// ErrBaseMismatch is returned when a format cannot feed the requested base.
	ErrBaseMismatch = errors.New("format does not support base")
)

// Format ids.
const (
	FormatUQD       = "UQD"
	FormatCVS       = "CVS"
	FormatHALO      = "HALO"
	FormatGALA      = "GALA"
	FormatGeneric   = "GENERIC"
	FormatSpotcheck = "SPOTCHECK"
	FormatPassFail  = "PASSFAIL"
	FormatAdhoc     = "ADHOC"
)

// Config is what an adapter knows about the file it is adapting.
type Config struct {
	ProjectID     string
	ReportingWeek string
	Base          quality.Base
	Options       project.ModuleConfig
}

// Result is an adapter's output: the intermediate table, the base that
// should normalize it and the normalizer options.
type Result struct {
	Base    quality.Base
	Table   *quality.Intermediate
	Options normalize.Options
}

// Adapter converts a raw vendor table into an intermediate table. Rows that
// cannot be used are counted in diag; an error means the whole file is unusable.
type Adapter interface {
	Adapt(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error)
}

// Func adapts a plain function to the Adapter interface.
type Func func(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error)

// Adapt implements Adapter.
func (f Func) Adapt(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	return f(raw, cfg, diag)
}

// Registry maps format ids and adhoc project ids to adapters.
type Registry struct {
	formats map[string]Adapter
	adhoc   map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: map[string]Adapter{}, adhoc: map[string]Adapter{}}
}

// Standard returns a registry with every built-in format registered.
func Standard() *Registry {
	r := NewRegistry()
	r.Register(FormatUQD, Func(UQD))
	r.Register(FormatCVS, Func(CVS))
	r.Register(FormatHALO, Func(HALO))
	r.Register(FormatGALA, Func(GALA))
	r.Register(FormatGeneric, Func(Generic))
	r.Register(FormatSpotcheck, Func(Spotcheck))
	r.Register(FormatPassFail, Func(PassFail))
	return r
}

// Register adds a format adapter. Format ids are case-insensitive.
func (r *Registry) Register(format string, a Adapter) {
	r.formats[strings.ToUpper(strings.TrimSpace(format))] = a
}

// RegisterAdhoc adds a custom adapter for one project.
func (r *Registry) RegisterAdhoc(projectID string, a Adapter) {
	r.adhoc[projectID] = a
}

// Select returns the adapter for a project's format id.
func (r *Registry) Select(projectID, format string) (Adapter, error) {
	id := strings.ToUpper(strings.TrimSpace(format))
	if id == FormatAdhoc {
		a, ok := r.adhoc[projectID]
		if !ok {
			return nil, fmt.Errorf("%w: project %s", ErrNoAdhoc, projectID)
		}
		return a, nil
	}
	a, ok := r.formats[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return a, nil
}

// Formats lists registered format ids.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.formats))
	for id := range r.formats {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AdhocProjects lists project ids with a custom adapter.
func (r *Registry) AdhocProjects() []string {
	out := make([]string, 0, len(r.adhoc))
	for id := range r.adhoc {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
