package normalize

import (
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/quality"
)

var defaultPositiveOutcomes = []string{"approved", "audit_approved", "pass", "passed"}

// Outcome turns a provided pass/fail value into a job-level correctness
// flag. Jobs with a blank outcome are not audited yet and are excluded when
// RequireAudited is set; otherwise they count as failing.
func Outcome(in *quality.Intermediate, opts Options) ([]quality.Record, Drops) {
	drops := Drops{}
	var out []quality.Record
	for _, row := range in.Wide {
		outcome := strings.TrimSpace(row.Outcome)
		if outcome == "" && opts.RequireAudited {
			drops.add(quality.DropNotAudited)
			continue
		}
		rec := baseRecord(quality.BaseOutcome, row.Job)
		rec.JobCorrect = quality.Bool(outcome != "" && opts.positiveOutcome(outcome))
		if row.JobScore != nil {
			rec.JobScore = quality.Float(*row.JobScore)
		}
		out = append(out, rec)
	}
	return out, drops
}

func (o Options) positiveOutcome(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(o.PositiveOutcomes) > 0 {
		for _, p := range o.PositiveOutcomes {
			if s == strings.ToLower(strings.TrimSpace(p)) {
				return true
			}
		}
		return false
	}
	for _, p := range defaultPositiveOutcomes {
		if s == p {
			return true
		}
	}
	v, ok := Boolish(s)
	return ok && v
}
