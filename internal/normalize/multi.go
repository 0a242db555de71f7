package normalize

import "github.com/Dataste0/quality-pipeline/internal/quality"

// Multi records each rater response with its weight. There is no ground
// truth, so correctness is never set.
func Multi(in *quality.Intermediate, opts Options) ([]quality.Record, Drops) {
	drops := Drops{}
	var out []quality.Record
	emit := func(job quality.Job, label, response string) {
		if response == "" {
			drops.add(quality.DropEmptyLabelPair)
			return
		}
		spec := opts.Label(label)
		job.AuditorID = ""
		rec := baseRecord(quality.BaseMulti, job)
		rec.Label = quality.Str(label)
		rec.RaterResponse = quality.Str(response)
		rec.IsLabelBinary = quality.Bool(spec.Binary)
		rec.Weight = quality.Float(spec.Weight)
		if spec.Binary {
			rec.IsPositive = quality.Bool(opts.fold(response) == opts.fold(spec.PositiveValue))
		}
		out = append(out, rec)
	}

	if in.Layout == quality.LayoutWide {
		for _, row := range in.Wide {
			for _, label := range in.Labels {
				emit(row.Job, label, row.Rater[label])
			}
		}
		return out, drops
	}
	for _, row := range in.Long {
		if row.Role == quality.RoleAuditor {
			continue
		}
		emit(row.Job, row.Label, row.Response)
	}
	return out, drops
}
