package adapter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// DefaultWorkflow is used when an export has no workflow column.
const DefaultWorkflow = "default_workflow"

// GoldenAuditor is the auditor id of golden-set comparisons.
const GoldenAuditor = "golden_set"

var numericID = regexp.MustCompile(`^\d+$`)

// CleanID trims an identifier and strips the quote spreadsheets prepend.
func CleanID(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "'", ""))
}

// ValidNumericID reports whether id is a plain run of digits.
func ValidNumericID(id string) bool {
	return numericID.MatchString(id)
}

// jobColumns maps raw columns onto quality.Job fields.
type jobColumns struct {
	Rater    string
	Auditor  string
	JobID    string
	Date     string
	Workflow string

	// NumericIDs rejects ids that are not plain digits.
	NumericIDs bool
	// NeedAuditor rejects rows without a valid auditor id.
	NeedAuditor bool
	// FixedAuditor replaces the auditor id of every row.
	FixedAuditor string
}

// required lists the columns that must exist in the raw table.
func (c jobColumns) required() []string {
	cols := []string{c.Rater, c.JobID, c.Date}
	if c.NeedAuditor && c.FixedAuditor == "" {
		cols = append(cols, c.Auditor)
	}
	return cols
}

// read extracts a job from row i, counting rows it has to drop.
func (c jobColumns) read(raw *table.Table, i int, diag *quality.Diagnostics) (quality.Job, bool) {
	date, ok := ParseDate(raw.Value(i, c.Date))
	if !ok {
		diag.Drop(quality.DropInvalidDate, 1)
		return quality.Job{}, false
	}

	job := quality.Job{
		JobDate: date,
		RaterID: CleanID(raw.Value(i, c.Rater)),
		JobID:   CleanID(raw.Value(i, c.JobID)),
	}
	if c.Workflow != "" {
		job.Workflow = strings.TrimSpace(raw.Value(i, c.Workflow))
	}
	if job.Workflow == "" {
		job.Workflow = DefaultWorkflow
	}

	switch {
	case c.FixedAuditor != "":
		job.AuditorID = c.FixedAuditor
	case c.Auditor != "":
		job.AuditorID = CleanID(raw.Value(i, c.Auditor))
	}

	if !c.validID(job.RaterID) || !c.validID(job.JobID) {
		diag.Drop(quality.DropInvalidID, 1)
		return quality.Job{}, false
	}
	if c.NeedAuditor && c.FixedAuditor == "" && !c.validID(job.AuditorID) {
		diag.Drop(quality.DropInvalidID, 1)
		return quality.Job{}, false
	}
	return job, true
}

func (c jobColumns) validID(id string) bool {
	if c.NumericIDs {
		return ValidNumericID(id)
	}
	return id != ""
}

func requireColumns(raw *table.Table, cols ...string) error {
	var want []string
	for _, c := range cols {
		if c != "" {
			want = append(want, c)
		}
	}
	if missing := raw.Missing(want...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// labelBase resolves the base for label-style formats: the configured
// quality methodology wins over the project's base, and the result must be
// audit or multi. golden reports an audit against the golden set.
func labelBase(cfg Config) (base quality.Base, golden bool, err error) {
	base = cfg.Base
	if m := strings.ToLower(strings.TrimSpace(cfg.Options.QualityMethodology)); m != "" {
		if m == "golden" {
			return quality.BaseAudit, true, nil
		}
		b, ok := quality.ParseBase(m)
		if !ok {
			return "", false, fmt.Errorf("%w: methodology %q", ErrBaseMismatch, m)
		}
		base = b
	}
	switch base {
	case "":
		return quality.BaseAudit, false, nil
	case quality.BaseAudit, quality.BaseMulti:
		return base, false, nil
	}
	return "", false, fmt.Errorf("%w: %s", ErrBaseMismatch, base)
}

// options translates module configuration into normalizer options.
func options(cfg project.ModuleConfig) normalize.Options {
	opts := normalize.DefaultOptions()
	opts.CaseSensitive = cfg.CaseSensitive

	for _, b := range cfg.BinaryLabels {
		if b.Name == "" {
			continue
		}
		spec := opts.Labels[b.Name]
		spec.Name = b.Name
		spec.Binary = true
		spec.PositiveValue = b.PositiveValue
		opts.Labels[b.Name] = spec
	}
	for name, w := range cfg.LabelWeights {
		spec := opts.Labels[name]
		spec.Name = name
		spec.Weight = w.Or(0)
		opts.Labels[name] = spec
	}
	for _, l := range cfg.Labels {
		if l.Name == "" {
			continue
		}
		spec := opts.Labels[l.Name]
		spec.Name = l.Name
		spec.Binary = spec.Binary || l.Binary
		if l.PositiveValue != "" {
			spec.PositiveValue = l.PositiveValue
		}
		if w := l.Weight.Or(0); w > 0 {
			spec.Weight = w
		}
		if l.AuditorColumnType != "" {
			spec.AuditorType = strings.ToLower(l.AuditorColumnType)
		}
		opts.Labels[l.Name] = spec
	}

	for _, item := range cfg.Rubric {
		if item.Name == "" {
			continue
		}
		opts.Rubric = append(opts.Rubric, normalize.RubricSpec{
			Name:    item.Name,
			Penalty: item.Penalty.Penalty(),
		})
	}
	if cfg.DefaultRubricName != "" {
		opts.DefaultRubric = cfg.DefaultRubricName
	}
	opts.PassThreshold = project.Fraction(cfg.PassScore.Or(100))
	opts.BottomScore = project.Fraction(cfg.BottomScore.Or(0))
	opts.ProvidedScore = cfg.UseScoreProvided
	opts.ProvidedOutcome = cfg.UseOutcomeProvided
	opts.PositiveOutcomes = cfg.ApprovedValues
	if cfg.RequireAudited != nil {
		opts.RequireAudited = *cfg.RequireAudited
	}
	return opts
}

type dedupeKey struct {
	rater, job, label string
	role              quality.Role
}

// DedupeWide keeps the latest submission per (rater, job) and counts the
// rest as duplicates.
func DedupeWide(rows []quality.WideRow, diag *quality.Diagnostics) []quality.WideRow {
	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	return rows
}

// dedupeWide keeps the latest submission per (rater, job). Later rows win ties.
func dedupeWide(rows []quality.WideRow) ([]quality.WideRow, int) {
	latest := make(map[dedupeKey]int, len(rows))
	for i, r := range rows {
		k := dedupeKey{rater: r.RaterID, job: r.JobID}
		if j, ok := latest[k]; !ok || r.JobDate >= rows[j].JobDate {
			latest[k] = i
		}
	}
	if len(latest) == len(rows) {
		return rows, 0
	}
	out := make([]quality.WideRow, 0, len(latest))
	for i, r := range rows {
		if latest[dedupeKey{rater: r.RaterID, job: r.JobID}] == i {
			out = append(out, r)
		}
	}
	return out, len(rows) - len(out)
}

// dedupeLong keeps the latest response per (rater, job, label, role).
func dedupeLong(rows []quality.LongRow) ([]quality.LongRow, int) {
	key := func(r quality.LongRow) dedupeKey {
		return dedupeKey{rater: r.RaterID, job: r.JobID, label: r.Label, role: r.Role}
	}
	latest := make(map[dedupeKey]int, len(rows))
	for i, r := range rows {
		k := key(r)
		if j, ok := latest[k]; !ok || r.JobDate >= rows[j].JobDate {
			latest[k] = i
		}
	}
	if len(latest) == len(rows) {
		return rows, 0
	}
	out := make([]quality.LongRow, 0, len(latest))
	for i, r := range rows {
		if latest[key(r)] == i {
			out = append(out, r)
		}
	}
	return out, len(rows) - len(out)
}

func lowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func wideResult(base quality.Base, labels []string, rows []quality.WideRow, opts normalize.Options) *Result {
	return &Result{
		Base:    base,
		Table:   &quality.Intermediate{Layout: quality.LayoutWide, Labels: labels, Wide: rows},
		Options: opts,
	}
}
