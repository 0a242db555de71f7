package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/quality"
)

// scoreEpsilon absorbs float error when comparing a job score to the pass threshold.
const scoreEpsilon = 1e-9

// Rubric scores each audited job from its rubric item counts.
//
// Every job emits one synthetic default row (penalty -1, factor 1, score +1)
// plus one row per configured item with score -(penalty*factor), so the
// rubric scores of a job sum to its unclipped job score.
func Rubric(in *quality.Intermediate, opts Options) ([]quality.Record, Drops) {
	drops := Drops{}
	defaultName := opts.DefaultRubric
	if defaultName == "" {
		defaultName = DefaultRubricName
	}

	var out []quality.Record
	for _, row := range in.Wide {
		if row.AuditorID == "" {
			drops.add(quality.DropNotAudited)
			continue
		}

		factors := make([]float64, len(opts.Rubric))
		total := 0.0
		for i, item := range opts.Rubric {
			factors[i] = Factor(row.Rater[item.Name])
			total += item.Penalty * factors[i]
		}
		score := JobScore(total, opts.BottomScore)
		if opts.ProvidedScore {
			if row.JobScore == nil {
				drops.add(quality.DropNotAudited)
				continue
			}
			score = *row.JobScore
		}

		var correct *bool
		if opts.ProvidedOutcome {
			if strings.TrimSpace(row.Outcome) == "" {
				drops.add(quality.DropNotAudited)
				continue
			}
			correct = quality.Bool(opts.positiveOutcome(row.Outcome))
		} else {
			correct = quality.Bool(score+scoreEpsilon >= opts.PassThreshold)
		}

		emit := func(name string, penalty, factor float64) {
			rec := baseRecord(quality.BaseRubric, row.Job)
			rec.Rubric = quality.Str(name)
			rec.RubricPenalty = quality.Float(penalty)
			rec.RubricFactor = quality.Float(factor)
			rec.RubricScore = quality.Float(-(penalty * factor))
			rec.JobScore = quality.Float(score)
			rec.JobCorrect = correct
			out = append(out, rec)
		}
		emit(defaultName, -1, 1)
		for i, item := range opts.Rubric {
			emit(item.Name, item.Penalty, factors[i])
		}
	}
	return out, drops
}

// JobScore returns 1 minus the total penalty, clipped below at bottom.
func JobScore(totalPenalty, bottom float64) float64 {
	return math.Max(1-totalPenalty, bottom)
}

// Factor reads a rubric cell: blank is 0, a number is truncated to an
// integer count, and any other text counts as one occurrence.
func Factor(cell string) float64 {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return math.Trunc(f)
	}
	if v, ok := Boolish(cell); ok {
		if v {
			return 1
		}
		return 0
	}
	return 1
}
