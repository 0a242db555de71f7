package normalize

import (
	"github.com/Dataste0/quality-pipeline/internal/quality"
)

type pair struct {
	job     quality.Job
	label   string
	rater   string
	auditor string
}

// Audit compares rater and auditor responses per (job, label).
//
// Binary labels get a confusion category from the positivity of both sides
// and are correct exactly when the category is TP or TN. Free-form labels
// are correct when the folded responses are equal.
func Audit(in *quality.Intermediate, opts Options) ([]quality.Record, Drops) {
	drops := Drops{}
	var out []quality.Record
	for _, p := range pairs(in) {
		if p.rater == "" && p.auditor == "" {
			drops.add(quality.DropEmptyLabelPair)
			continue
		}
		spec := opts.Label(p.label)
		rec := baseRecord(quality.BaseAudit, p.job)
		rec.Label = quality.Str(p.label)
		rec.RaterResponse = quality.StrOrNil(p.rater)
		rec.AuditorResponse = quality.StrOrNil(p.auditor)
		rec.IsLabelBinary = quality.Bool(spec.Binary)
		rec.Weight = quality.Float(spec.Weight)

		if spec.Binary {
			raterPos, auditorPos := opts.positivity(spec, p.rater, p.auditor)
			c := Confusion(raterPos, auditorPos)
			rec.IsPositive = quality.Bool(raterPos)
			rec.ConfusionType = quality.Str(c)
			rec.IsCorrect = quality.Bool(c == quality.TP || c == quality.TN)
		} else {
			rec.IsCorrect = quality.Bool(opts.agrees(spec, p.rater, p.auditor))
		}
		out = append(out, rec)
	}
	return out, drops
}

// Confusion maps rater and auditor positivity to a confusion category.
func Confusion(raterPositive, auditorPositive bool) string {
	switch {
	case raterPositive && auditorPositive:
		return quality.TP
	case raterPositive && !auditorPositive:
		return quality.FP
	case !raterPositive && auditorPositive:
		return quality.FN
	default:
		return quality.TN
	}
}

// positivity resolves both sides of a binary label. For agreement columns
// the auditor's verdict on the rater decides the auditor side; an
// unreadable verdict counts as disagreement.
func (o Options) positivity(spec LabelSpec, rater, auditor string) (bool, bool) {
	pos := o.fold(spec.PositiveValue)
	raterPos := rater != "" && o.fold(rater) == pos
	switch spec.AuditorType {
	case AuditorAgreement, AuditorDisagreement:
		if o.verdict(spec, auditor) {
			return raterPos, raterPos
		}
		return raterPos, !raterPos
	}
	return raterPos, auditor != "" && o.fold(auditor) == pos
}

func (o Options) agrees(spec LabelSpec, rater, auditor string) bool {
	switch spec.AuditorType {
	case AuditorAgreement, AuditorDisagreement:
		return o.verdict(spec, auditor)
	}
	if rater == "" || auditor == "" {
		return false
	}
	return o.fold(rater) == o.fold(auditor)
}

// verdict reports whether the auditor column says the rater was right.
func (o Options) verdict(spec LabelSpec, auditor string) bool {
	v, ok := Boolish(auditor)
	if !ok {
		return false
	}
	if spec.AuditorType == AuditorDisagreement {
		return !v
	}
	return v
}

type pairKey struct {
	job   quality.Job
	label string
}

// pairs flattens either layout into (job, label) response pairs, keeping
// first-seen order.
func pairs(in *quality.Intermediate) []pair {
	var out []pair
	if in.Layout == quality.LayoutWide {
		for _, row := range in.Wide {
			for _, label := range in.Labels {
				out = append(out, pair{job: row.Job, label: label, rater: row.Rater[label], auditor: row.Auditor[label]})
			}
		}
		return out
	}

	index := make(map[pairKey]int)
	for _, row := range in.Long {
		k := pairKey{job: row.Job, label: row.Label}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, pair{job: row.Job, label: row.Label})
		}
		switch row.Role {
		case quality.RoleAuditor:
			out[i].auditor = row.Response
		default:
			out[i].rater = row.Response
		}
	}
	return out
}
