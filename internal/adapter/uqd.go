package adapter

import (
	"fmt"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// UQD adapts decision-data exports: one row per rater submission with the
// rater's decision JSON and, for audits, the auditor's decision JSON.
func UQD(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	base, golden, err := labelBase(cfg)
	if err != nil {
		return nil, err
	}
	needAuditor := base == quality.BaseAudit

	raterData, auditorData := "decision_data", "quality_decision_data"
	if opts.UseExtracted {
		raterData, auditorData = "extracted_label", "quality_extracted_label"
	}
	raterData = opts.Column("rater_decision_column", raterData)
	auditorData = opts.Column("auditor_decision_column", auditorData)

	cols := jobColumns{
		Rater:       opts.Column("rater_id_column", "actor_id"),
		Auditor:     opts.Column("auditor_id_column", "quality_actor_id"),
		JobID:       opts.Column("job_id_column", "job_id"),
		Date:        opts.Column("submission_date_column", "review_ds"),
		Workflow:    opts.Column("workflow_column", "queue_name"),
		NumericIDs:  true,
		NeedAuditor: needAuditor,
	}
	if golden {
		cols.FixedAuditor = GoldenAuditor
	}
	required := append(cols.required(), raterData)
	if needAuditor {
		required = append(required, auditorData)
	}
	if err := requireColumns(raw, required...); err != nil {
		return nil, err
	}

	excluded := lowerSet(opts.ExcludedLabels)
	labelSet := map[string]bool{}
	auditorOnly := 0
	var rows []quality.WideRow
	for i := range raw.Rows {
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}
		if !needAuditor {
			job.AuditorID = ""
		}

		raterPairs, err := parseDecision(raw.Value(i, raterData), opts.UseExtracted)
		if err != nil || len(raterPairs) == 0 {
			diag.Drop(quality.DropInvalidJSON, 1)
			continue
		}
		var auditorPairs []labelValue
		if needAuditor {
			auditorPairs, err = parseDecision(raw.Value(i, auditorData), opts.UseExtracted)
			if err != nil || len(auditorPairs) == 0 {
				diag.Drop(quality.DropInvalidJSON, 1)
				continue
			}
		}

		row := quality.WideRow{Job: job, Rater: map[string]string{}, Auditor: map[string]string{}}
		for _, p := range raterPairs {
			if excluded[strings.ToLower(p.Label)] {
				continue
			}
			row.Rater[p.Label] = p.Value
			labelSet[p.Label] = true
		}
		for _, p := range auditorPairs {
			if excluded[strings.ToLower(p.Label)] {
				continue
			}
			if _, ok := row.Rater[p.Label]; !ok {
				auditorOnly++
				continue
			}
			row.Auditor[p.Label] = p.Value
		}
		rows = append(rows, row)
	}

	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	if auditorOnly > 0 {
		diag.Note(fmt.Sprintf("ignored %d auditor-only label values", auditorOnly))
	}
	return wideResult(base, sortedKeys(labelSet), rows, options(opts)), nil
}
