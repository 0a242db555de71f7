package adapter

import (
	"strconv"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// commentedOutcome replaces the vendor tag of commented jobs when
// incorrect_if_commented is set. It never matches a positive value.
const commentedOutcome = "commented"

// HALO adapts rubric audit exports with one column per rubric item. The
// project's base decides whether the rubric is scored or only the vendor
// tag is kept as an outcome.
func HALO(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	base := quality.BaseRubric
	if cfg.Base == quality.BaseOutcome {
		base = quality.BaseOutcome
	}

	cols := jobColumns{
		Rater:    opts.Column("rater_id_column", "SRT Annotator ID"),
		Auditor:  opts.Column("auditor_id_column", "Vendor Auditor ID"),
		JobID:    opts.Column("job_id_column", "SRT Job ID"),
		Date:     opts.Column("submission_date_column", "Time (PT)"),
		Workflow: opts.Column("workflow_column", "Workflow"),
	}
	if !raw.Has(cols.Workflow) {
		cols.Workflow = ""
	}
	tagCol := opts.Column("vendor_tag_column", "Vendor Tag")
	commentCol := opts.Column("vendor_comment_column", "Vendor Comment")
	scoreCol := opts.Column("vendor_score_column", opts.Column("manual_score_column", "Vendor Manual QA Score"))

	required := cols.required()
	if opts.UseOutcomeProvided || base == quality.BaseOutcome {
		required = append(required, tagCol)
	}
	if opts.UseScoreProvided {
		required = append(required, scoreCol)
	}
	if err := requireColumns(raw, required...); err != nil {
		return nil, err
	}

	items := presentRubric(raw, opts.Rubric, func(it project.RubricItem) string { return it.Column })
	norm := options(opts)
	norm.Rubric = rubricSpecs(items)
	if (norm.ProvidedOutcome || base == quality.BaseOutcome) && len(norm.PositiveOutcomes) == 0 {
		norm.PositiveOutcomes = []string{"Approved"}
	}
	if len(items) < len(opts.Rubric) {
		diag.Note("rubric columns missing from file: " + strings.Join(missingRubric(opts.Rubric, items), ", "))
	}

	var rows []quality.WideRow
	for i := range raw.Rows {
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}
		row := quality.WideRow{Job: job, Rater: map[string]string{}}
		for _, it := range items {
			row.Rater[it.Name] = raw.Value(i, it.Column)
		}
		if raw.Has(scoreCol) {
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw.Value(i, scoreCol)), 64); err == nil {
				score := project.Fraction(f)
				row.JobScore = &score
			}
		}
		if raw.Has(tagCol) {
			row.Outcome = strings.TrimSpace(raw.Value(i, tagCol))
			if opts.IncorrectIfCommented && row.Outcome != "" && strings.TrimSpace(raw.Value(i, commentCol)) != "" {
				row.Outcome = commentedOutcome
			}
		}
		rows = append(rows, row)
	}

	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	return wideResult(base, rubricNames(items), rows, norm), nil
}

// presentRubric keeps the rubric items whose source column exists.
func presentRubric(raw *table.Table, items []project.RubricItem, column func(project.RubricItem) string) []project.RubricItem {
	var out []project.RubricItem
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		if c := column(it); c != "" && raw.Has(c) {
			out = append(out, it)
		}
	}
	return out
}

func missingRubric(all, present []project.RubricItem) []string {
	have := map[string]bool{}
	for _, it := range present {
		have[it.Name] = true
	}
	var out []string
	for _, it := range all {
		if it.Name != "" && !have[it.Name] {
			out = append(out, it.Name)
		}
	}
	return out
}

func rubricSpecs(items []project.RubricItem) []normalize.RubricSpec {
	out := make([]normalize.RubricSpec, 0, len(items))
	for _, it := range items {
		out = append(out, normalize.RubricSpec{Name: it.Name, Penalty: it.Penalty.Penalty()})
	}
	return out
}

func rubricNames(items []project.RubricItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}
