// Package quality defines the shapes shared by adapters, normalizers and
// the canonical writer: base methodologies, the two intermediate layouts,
// the canonical quality record and per-file diagnostics.
package quality

import "strings"

// Base is a project's base methodology.
type Base string

const (
	BaseAudit   Base = "audit"
	BaseMulti   Base = "multi"
	BaseRubric  Base = "rubric"
	BaseOutcome Base = "outcome"
)

// ParseBase accepts the spellings used in the project master list.
func ParseBase(s string) (Base, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audit", "base-audit", "base_audit":
		return BaseAudit, true
	case "multi", "multi-review", "multireview", "base-multi", "base_multi":
		return BaseMulti, true
	case "rubric", "base-rubric", "base_rubric":
		return BaseRubric, true
	case "outcome", "outcome-only", "halo", "base-halo", "base_halo":
		return BaseOutcome, true
	}
	return "", false
}

// Code is the single-letter tag used in output file names.
func (b Base) Code() string {
	switch b {
	case BaseAudit:
		return "A"
	case BaseMulti:
		return "M"
	case BaseRubric:
		return "R"
	case BaseOutcome:
		return "O"
	}
	return "X"
}

// Job identifies one unit of rated work. JobDate is an ISO date or empty.
type Job struct {
	Workflow  string
	JobDate   string
	RaterID   string
	AuditorID string
	JobID     string
}

// Layout selects which intermediate representation an adapter produced.
type Layout int

const (
	// LayoutWide has one row per job/rater[+auditor] with per-label responses.
	LayoutWide Layout = iota
	// LayoutLong has one row per (job, actor, label) with a single response.
	LayoutLong
)

// WideRow is a row of the wide pair layout. Empty responses are missing.
// For rubric tables the label maps hold per-item occurrence counts, and for
// outcome tables Outcome holds the provided pass/fail value.
type WideRow struct {
	Job
	Rater    map[string]string
	Auditor  map[string]string
	JobScore *float64
	Outcome  string
}

// Role is the actor role of a long-layout row.
type Role string

const (
	RoleRater   Role = "rater"
	RoleAuditor Role = "auditor"
)

// LongRow is a row of the already-long layout.
type LongRow struct {
	Job
	Label    string
	Role     Role
	Response string
}

// Intermediate is what an adapter hands to a base normalizer.
type Intermediate struct {
	Layout Layout
	Labels []string
	Wide   []WideRow
	Long   []LongRow
}

// Len returns the number of rows in the active layout.
func (in *Intermediate) Len() int {
	if in.Layout == LayoutLong {
		return len(in.Long)
	}
	return len(in.Wide)
}

// Confusion categories for binary labels.
const (
	TP = "TP"
	TN = "TN"
	FP = "FP"
	FN = "FN"
)

// Record is the canonical long-format quality record.
type Record struct {
	ProjectID       string   `parquet:"project_id" json:"project_id"`
	ReportingWeek   string   `parquet:"reporting_week" json:"reporting_week"`
	ContentWeek     string   `parquet:"content_week" json:"content_week"`
	Base            string   `parquet:"base" json:"base"`
	Workflow        string   `parquet:"workflow" json:"workflow"`
	JobID           string   `parquet:"job_id" json:"job_id"`
	JobDate         string   `parquet:"job_date" json:"job_date"`
	RaterID         string   `parquet:"rater_id" json:"rater_id"`
	AuditorID       *string  `parquet:"auditor_id,optional" json:"auditor_id,omitempty"`
	Label           *string  `parquet:"label,optional" json:"label,omitempty"`
	RaterResponse   *string  `parquet:"rater_response,optional" json:"rater_response,omitempty"`
	AuditorResponse *string  `parquet:"auditor_response,optional" json:"auditor_response,omitempty"`
	IsLabelBinary   *bool    `parquet:"is_label_binary,optional" json:"is_label_binary,omitempty"`
	IsPositive      *bool    `parquet:"is_positive,optional" json:"is_positive,omitempty"`
	ConfusionType   *string  `parquet:"confusion_type,optional" json:"confusion_type,omitempty"`
	IsCorrect       *bool    `parquet:"is_correct,optional" json:"is_correct,omitempty"`
	Weight          *float64 `parquet:"weight,optional" json:"weight,omitempty"`
	Rubric          *string  `parquet:"rubric,optional" json:"rubric,omitempty"`
	RubricPenalty   *float64 `parquet:"rubric_penalty,optional" json:"rubric_penalty,omitempty"`
	RubricFactor    *float64 `parquet:"rubric_factor,optional" json:"rubric_factor,omitempty"`
	RubricScore     *float64 `parquet:"rubric_score,optional" json:"rubric_score,omitempty"`
	JobScore        *float64 `parquet:"job_score,optional" json:"job_score,omitempty"`
	JobCorrect      *bool    `parquet:"job_correct,optional" json:"job_correct,omitempty"`
}

// Drop reasons recorded in Diagnostics.
const (
	DropInvalidDate      = "invalid_date"
	DropInvalidID        = "invalid_id"
	DropInvalidJSON      = "invalid_json"
	DropDuplicate        = "duplicate_submission"
	DropNotAudited       = "not_audited"
	DropExcludedWorkflow = "excluded_workflow"
	DropUnmappedRater    = "unmapped_rater"
	DropEmptyLabelPair   = "empty_label_pair"
	DropAuditorOnlyLabel = "auditor_only_label"
)

// Diagnostics accumulates per-file counters. Data-quality problems are
// counted here instead of being returned as errors.
type Diagnostics struct {
	Module  string         `json:"module"`
	Base    string         `json:"base,omitempty"`
	RowsIn  int            `json:"rows_in"`
	RowsOut int            `json:"rows_out"`
	Labels  []string       `json:"labels,omitempty"`
	Dropped map[string]int `json:"dropped,omitempty"`
	Notes   []string       `json:"notes,omitempty"`
}

// Drop records n rows dropped for reason.
func (d *Diagnostics) Drop(reason string, n int) {
	if n <= 0 {
		return
	}
	if d.Dropped == nil {
		d.Dropped = make(map[string]int)
	}
	d.Dropped[reason] += n
}

// Note appends a free-form remark.
func (d *Diagnostics) Note(s string) {
	d.Notes = append(d.Notes, s)
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// StrOrNil returns nil for an empty string.
func StrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
