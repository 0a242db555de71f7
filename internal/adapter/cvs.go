package adapter

import (
	"fmt"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

// combinedRouting rows aggregate other workflows and are always excluded.
const combinedRouting = "combined_routing"

// CVS adapts sampled review exports. The auditor id is not a column: it is
// the key of the auditor decision JSON. Label names are lower-cased.
func CVS(raw *table.Table, cfg Config, diag *quality.Diagnostics) (*Result, error) {
	opts := cfg.Options
	base, _, err := labelBase(cfg)
	if err != nil {
		return nil, err
	}

	cols := jobColumns{
		Rater:      opts.Column("rater_id_column", "rater_id"),
		JobID:      opts.Column("job_id_column", "entity_id"),
		Date:       opts.Column("submission_date_column", "sample_ds"),
		Workflow:   opts.Column("workflow_column", "routing_name"),
		NumericIDs: true,
	}
	raterData := opts.Column("rater_decision_column", "rater_decision_data")
	auditorData := opts.Column("auditor_decision_column", "auditor_decision_data")
	if err := requireColumns(raw, append(cols.required(), cols.Workflow, raterData, auditorData)...); err != nil {
		return nil, err
	}

	excluded := lowerSet(opts.ExcludedLabels)
	excludedWorkflows := lowerSet(append([]string{combinedRouting}, opts.ExcludedWorkflows...))
	labelSet := map[string]bool{}
	auditorOnly := 0
	var rows []quality.WideRow
	for i := range raw.Rows {
		if excludedWorkflows[strings.ToLower(strings.TrimSpace(raw.Value(i, cols.Workflow)))] {
			diag.Drop(quality.DropExcludedWorkflow, 1)
			continue
		}
		job, ok := cols.read(raw, i, diag)
		if !ok {
			continue
		}

		raterPairs, err := parseDecision(raw.Value(i, raterData), false)
		if err != nil || len(raterPairs) == 0 {
			diag.Drop(quality.DropInvalidJSON, 1)
			continue
		}
		auditorID, auditorPairs, err := parseAuditorDecision(raw.Value(i, auditorData))
		if err != nil || len(auditorPairs) == 0 {
			diag.Drop(quality.DropInvalidJSON, 1)
			continue
		}
		if base == quality.BaseAudit && !ValidNumericID(auditorID) {
			diag.Drop(quality.DropInvalidID, 1)
			continue
		}
		if base == quality.BaseAudit {
			job.AuditorID = auditorID
		}

		row := quality.WideRow{Job: job, Rater: map[string]string{}, Auditor: map[string]string{}}
		for _, p := range raterPairs {
			label := strings.ToLower(p.Label)
			if excluded[label] {
				continue
			}
			row.Rater[label] = p.Value
			labelSet[label] = true
		}
		for _, p := range auditorPairs {
			label := strings.ToLower(p.Label)
			if excluded[label] {
				continue
			}
			if _, ok := row.Rater[label]; !ok {
				auditorOnly++
				continue
			}
			row.Auditor[label] = p.Value
		}
		rows = append(rows, row)
	}

	rows, dups := dedupeWide(rows)
	diag.Drop(quality.DropDuplicate, dups)
	if auditorOnly > 0 {
		diag.Note(fmt.Sprintf("ignored %d auditor-only label values", auditorOnly))
	}

	o := options(opts)
	specs := make(map[string]normalize.LabelSpec, len(o.Labels))
	for name, spec := range o.Labels {
		spec.Name = strings.ToLower(name)
		specs[spec.Name] = spec
	}
	o.Labels = specs
	return wideResult(base, sortedKeys(labelSet), rows, o), nil
}
