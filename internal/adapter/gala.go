package adapter

import (
	"strconv"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
	"github.com/tidwall/gjson"
)

// GALA adapts audit-status exports whose rubric answers are a JSON list of
// {"question": ..., "answer": ...} objects. Jobs without an audit status
// have not been audited and are dropped.
func GALA(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	cols := jobColumns{
		Rater:    opts.Column("rater_id_column", "annotator_id"),
		Auditor:  opts.Column("auditor_id_column", "auditor_id"),
		JobID:    opts.Column("job_id_column", "task_id"),
		Date:     opts.Column("submission_date_column", "original_submission_time"),
		Workflow: opts.Column("workflow_column", "task_name"),
	}
	if !raw.Has(cols.Workflow) {
		cols.Workflow = ""
	}
	statusCol := opts.Column("audit_status_column", "audit_status")
	scoreCol := opts.Column("score_column", "QA_score")
	answersCol := opts.Column("rubric_answer_column", "rubric_answer")
	if err := requireColumns(raw, append(cols.required(), statusCol)...); err != nil {
		return nil, err
	}

	norm := options(opts)
	norm.ProvidedOutcome = true
	if len(norm.PositiveOutcomes) == 0 {
		norm.PositiveOutcomes = []string{"AUDIT_APPROVED"}
	}
	var items []project.RubricItem
	for _, it := range opts.Rubric {
		if it.Name != "" {
			items = append(items, it)
		}
	}
	norm.Rubric = rubricSpecs(items)
	if opts.UseScoreProvided && !raw.Has(scoreCol) {
		return nil, requireColumns(raw, scoreCol)
	}

	var rows []quality.WideRow
	for i := range raw.Rows {
		status := strings.TrimSpace(raw.Value(i, statusCol))
		if status == "" {
			diag.Drop(quality.DropNotAudited, 1)
			continue
		}
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}
		row := quality.WideRow{Job: job, Rater: map[string]string{}, Outcome: status}
		counts := rubricAnswers(raw.Value(i, answersCol), items)
		for _, it := range items {
			row.Rater[it.Name] = strconv.Itoa(counts[it.Name])
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw.Value(i, scoreCol)), 64); err == nil {
			score := project.Fraction(f)
			row.JobScore = &score
		}
		rows = append(rows, row)
	}

	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	return wideResult(quality.BaseRubric, rubricNames(items), rows, norm), nil
}

// rubricAnswers counts "Yes" answers per rubric item. A question matches
// an item by its extended text or its name. Answers may themselves be a
// JSON-encoded list.
func rubricAnswers(blob string, items []project.RubricItem) map[string]int {
	counts := map[string]int{}
	s, err := normalizeJSON(blob)
	if err != nil {
		return counts
	}
	byQuestion := map[string]string{}
	for _, it := range items {
		byQuestion[strings.TrimSpace(it.Name)] = it.Name
		if it.Extended != "" {
			byQuestion[strings.TrimSpace(it.Extended)] = it.Name
		}
	}

	gjson.Parse(s).ForEach(func(_, entry gjson.Result) bool {
		name, ok := byQuestion[strings.TrimSpace(entry.Get("question").String())]
		if !ok {
			return true
		}
		answer := entry.Get("answer")
		if answer.Type == gjson.String && gjson.Valid(answer.String()) {
			answer = gjson.Parse(answer.String())
		}
		if answer.IsArray() {
			answer.ForEach(func(_, a gjson.Result) bool {
				if isYes(a.String()) {
					counts[name]++
				}
				return true
			})
			return true
		}
		if isYes(answer.String()) {
			counts[name]++
		}
		return true
	})
	return counts
}

func isYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}
