// Package adhoc holds project-specific adapters for exports that no
// standard format describes.
package adhoc

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/adapter"
	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// Project ids served by the adapters in this package.
const (
	JobSuccessfulProject = "a01Hs00001q1a18IAA"
	LegacyUQDProject     = "a01TR00000Eb8K1YAJ"
)

// Register adds every adhoc adapter to reg.
func Register(reg *adapter.Registry) {
	reg.RegisterAdhoc(JobSuccessfulProject, adapter.Func(JobSuccessful))
	reg.RegisterAdhoc(LegacyUQDProject, adapter.Func(LegacyUQD))
}

const jobSuccessfulLabel = "is_job_successful"

// JobSuccessful adapts a yes/no job success export into an audit label
// where the rater implicitly claims success.
func JobSuccessful(raw *table.Table, cfg adapter.Config, diag *quality.Diagnostics) (*adapter.Result, error) {
	const (
		raterCol   = "Annotator ID"
		dateCol    = "Annotation Date And Time"
		jobCol     = "Annotation Job ID"
		auditorCol = "Auditor ID"
		verdictCol = "Is Job Successful?"
	)
	if missing := raw.Missing(raterCol, dateCol, jobCol, auditorCol, verdictCol); len(missing) > 0 {
		return nil, missingColumns(missing)
	}

	var rows []quality.WideRow
	for i := range raw.Rows {
		rater := adapter.CleanID(raw.Value(i, raterCol))
		auditor := adapter.CleanID(raw.Value(i, auditorCol))
		if rater == "" || auditor == "" {
			diag.Drop(quality.DropNotAudited, 1)
			continue
		}
		job := adapter.CleanID(raw.Value(i, jobCol))
		if job == "" {
			diag.Drop(quality.DropInvalidID, 1)
			continue
		}
		date, ok := adapter.ParseDate(raw.Value(i, dateCol))
		if !ok {
			diag.Drop(quality.DropInvalidDate, 1)
			continue
		}
		rows = append(rows, quality.WideRow{
			Job: quality.Job{
				Workflow:  adapter.DefaultWorkflow,
				JobDate:   date,
				RaterID:   rater,
				AuditorID: auditor,
				JobID:     job,
			},
			Rater:   map[string]string{jobSuccessfulLabel: "true"},
			Auditor: map[string]string{jobSuccessfulLabel: successVerdict(raw.Value(i, verdictCol))},
		})
	}

	rows = adapter.DedupeWide(rows, diag)

	opts := normalize.DefaultOptions()
	return &adapter.Result{
		Base:    quality.BaseAudit,
		Table:   &quality.Intermediate{Layout: quality.LayoutWide, Labels: []string{jobSuccessfulLabel}, Wide: rows},
		Options: opts,
	}, nil
}

func successVerdict(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return "true"
	}
	return "false"
}

var apostrophe = regexp.MustCompile(`(\pL)'(\pL)`)

// LegacyUQD adapts a decision-data export that predates extracted labels.
// Old files lack the extracted columns and carry last_review_ds; both
// shapes are mapped onto the current UQD layout.
func LegacyUQD(raw *table.Table, cfg adapter.Config, diag *quality.Diagnostics) (*adapter.Result, error) {
	if !raw.Has("extracted_label") && !raw.Has("quality_extracted_label") && !raw.Has("quality_methodology") {
		if raw.Has("last_review_ds") && !raw.Has("review_ds") {
			raw.Rename(map[string]string{"last_review_ds": "review_ds"})
		}
		diag.Note("legacy layout")
	}
	for _, col := range []string{"decision_data", "quality_decision_data"} {
		if raw.Has(col) {
			raw.ReplaceRegex(col, apostrophe, "$1’$2")
		}
	}

	cfg.Options.UseExtracted = false
	cfg.Options.QualityMethodology = string(quality.BaseMulti)
	cfg.Options.ExcludedLabels = append(slices.Clone(cfg.Options.ExcludedLabels), "hallucination_example", "omit_example")
	return adapter.UQD(raw, cfg, diag)
}

func missingColumns(cols []string) error {
	return fmt.Errorf("%w: %s", adapter.ErrMissingColumns, strings.Join(cols, ", "))
}
