package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dataste0/quality-pipeline/internal/quality"
)

func job(id string) quality.Job {
	return quality.Job{Workflow: "wf", JobDate: "2025-01-08", RaterID: "10", AuditorID: "20", JobID: id}
}

func wide(labels []string, rows ...quality.WideRow) *quality.Intermediate {
	return &quality.Intermediate{Layout: quality.LayoutWide, Labels: labels, Wide: rows}
}

func binaryOpts(label, pos string) Options {
	opts := DefaultOptions()
	opts.Labels[label] = LabelSpec{Name: label, Binary: true, PositiveValue: pos}
	return opts
}

func TestAuditBinaryFalsePositive(t *testing.T) {
	in := wide([]string{"relevant"}, quality.WideRow{
		Job:     job("1"),
		Rater:   map[string]string{"relevant": "yes"},
		Auditor: map[string]string{"relevant": "no"},
	})

	recs, drops := Audit(in, binaryOpts("relevant", "yes"))
	require.Len(t, recs, 1)
	assert.Empty(t, drops)

	r := recs[0]
	assert.Equal(t, quality.FP, *r.ConfusionType)
	assert.False(t, *r.IsCorrect)
	assert.True(t, *r.IsPositive)
	assert.True(t, *r.IsLabelBinary)
	assert.Equal(t, 1.0, *r.Weight)
	assert.Equal(t, "2025-01-10", r.ContentWeek)
	assert.Equal(t, "audit", r.Base)
	assert.Equal(t, "20", *r.AuditorID)
}

func TestConfusionPartitionsBinaryRows(t *testing.T) {
	seen := map[string]bool{}
	for _, rp := range []bool{true, false} {
		for _, ap := range []bool{true, false} {
			c := Confusion(rp, ap)
			assert.False(t, seen[c], "category %s assigned twice", c)
			seen[c] = true
		}
	}
	assert.Len(t, seen, 4)
}

func TestAuditAllConfusionCategories(t *testing.T) {
	cases := map[string]struct {
		rater, auditor string
		want           string
		correct        bool
	}{
		"true positive":  {"Yes", "yes ", quality.TP, true},
		"false positive": {"yes", "no", quality.FP, false},
		"false negative": {"no", "yes", quality.FN, false},
		"true negative":  {"no", "maybe", quality.TN, true},
		"missing rater":  {"", "yes", quality.FN, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := wide([]string{"l"}, quality.WideRow{
				Job:     job("1"),
				Rater:   map[string]string{"l": tc.rater},
				Auditor: map[string]string{"l": tc.auditor},
			})
			recs, _ := Audit(in, binaryOpts("l", "yes"))
			require.Len(t, recs, 1)
			assert.Equal(t, tc.want, *recs[0].ConfusionType)
			assert.Equal(t, tc.correct, *recs[0].IsCorrect)
		})
	}
}

func TestAuditCaseSensitivePolicy(t *testing.T) {
	in := wide([]string{"l"}, quality.WideRow{
		Job:     job("1"),
		Rater:   map[string]string{"l": "Cat"},
		Auditor: map[string]string{"l": "cat"},
	})

	recs, _ := Audit(in, DefaultOptions())
	require.Len(t, recs, 1)
	assert.True(t, *recs[0].IsCorrect)
	assert.Nil(t, recs[0].ConfusionType)
	assert.Nil(t, recs[0].IsPositive)

	opts := DefaultOptions()
	opts.CaseSensitive = true
	recs, _ = Audit(in, opts)
	assert.False(t, *recs[0].IsCorrect)
}

func TestAuditAgreementColumns(t *testing.T) {
	opts := DefaultOptions()
	opts.Labels["ok"] = LabelSpec{Name: "ok", AuditorType: AuditorAgreement, Weight: 2}
	opts.Labels["bad"] = LabelSpec{Name: "bad", AuditorType: AuditorDisagreement}
	opts.Labels["bin"] = LabelSpec{Name: "bin", Binary: true, PositiveValue: "true", AuditorType: AuditorAgreement}

	in := wide([]string{"ok", "bad", "bin"},
		quality.WideRow{
			Job:     job("1"),
			Rater:   map[string]string{"bin": "true"},
			Auditor: map[string]string{"ok": "Agree", "bad": "no", "bin": "0"},
		},
		quality.WideRow{
			Job:     job("2"),
			Rater:   map[string]string{"bin": "false"},
			Auditor: map[string]string{"ok": "???", "bad": "yes", "bin": "yes"},
		},
	)

	recs, _ := Audit(in, opts)
	require.Len(t, recs, 6)

	assert.True(t, *recs[0].IsCorrect)
	assert.Equal(t, 2.0, *recs[0].Weight)
	assert.True(t, *recs[1].IsCorrect, "disagreement 'no' means the rater was right")
	assert.Equal(t, quality.FP, *recs[2].ConfusionType)

	assert.False(t, *recs[3].IsCorrect, "unreadable verdict counts as incorrect")
	assert.False(t, *recs[4].IsCorrect)
	assert.Equal(t, quality.TN, *recs[5].ConfusionType)
}

func TestAuditSkipsEmptyPairs(t *testing.T) {
	in := wide([]string{"a", "b"}, quality.WideRow{
		Job:     job("1"),
		Rater:   map[string]string{"a": "x"},
		Auditor: map[string]string{},
	})
	recs, drops := Audit(in, DefaultOptions())
	require.Len(t, recs, 1)
	assert.Equal(t, 1, drops[quality.DropEmptyLabelPair])
	assert.False(t, *recs[0].IsCorrect)
}

func TestAuditLongLayout(t *testing.T) {
	j := job("9")
	in := &quality.Intermediate{
		Layout: quality.LayoutLong,
		Labels: []string{"l"},
		Long: []quality.LongRow{
			{Job: j, Label: "l", Role: quality.RoleRater, Response: "yes"},
			{Job: j, Label: "m", Role: quality.RoleRater, Response: "a"},
			{Job: j, Label: "l", Role: quality.RoleAuditor, Response: "yes"},
			{Job: j, Label: "m", Role: quality.RoleAuditor, Response: "b"},
		},
	}
	recs, _ := Audit(in, binaryOpts("l", "yes"))
	require.Len(t, recs, 2)
	assert.Equal(t, "l", *recs[0].Label)
	assert.Equal(t, quality.TP, *recs[0].ConfusionType)
	assert.Equal(t, "m", *recs[1].Label)
	assert.False(t, *recs[1].IsCorrect)
}

func TestMulti(t *testing.T) {
	opts := binaryOpts("flag", "yes")
	opts.Labels["free"] = LabelSpec{Name: "free", Weight: 0.5}
	in := wide([]string{"flag", "free"}, quality.WideRow{
		Job:   job("1"),
		Rater: map[string]string{"flag": "YES", "free": "text"},
	}, quality.WideRow{
		Job:   job("2"),
		Rater: map[string]string{"flag": "no"},
	})

	recs, drops := Multi(in, opts)
	require.Len(t, recs, 3)
	assert.Equal(t, 1, drops[quality.DropEmptyLabelPair])
	for _, r := range recs {
		assert.Nil(t, r.IsCorrect)
		assert.Nil(t, r.ConfusionType)
		assert.Nil(t, r.AuditorID)
		assert.Equal(t, "multi", r.Base)
	}
	assert.True(t, *recs[0].IsPositive)
	assert.Equal(t, 0.5, *recs[1].Weight)
	assert.False(t, *recs[2].IsPositive)
}

func rubricOpts() Options {
	opts := DefaultOptions()
	opts.Rubric = []RubricSpec{{Name: "typo", Penalty: 0.05}, {Name: "wrong_fact", Penalty: 0.10}}
	return opts
}

func TestRubricScoreExample(t *testing.T) {
	in := wide([]string{"typo", "wrong_fact"}, quality.WideRow{
		Job:   job("1"),
		Rater: map[string]string{"typo": "1", "wrong_fact": "2"},
	})
	recs, _ := Rubric(in, rubricOpts())
	require.Len(t, recs, 3)

	assert.InDelta(t, 0.75, *recs[0].JobScore, 1e-12)
	assert.False(t, *recs[0].JobCorrect)

	assert.Equal(t, DefaultRubricName, *recs[0].Rubric)
	assert.Equal(t, 1.0, *recs[0].RubricScore)
	assert.InDelta(t, -0.05, *recs[1].RubricScore, 1e-12)
	assert.InDelta(t, -0.20, *recs[2].RubricScore, 1e-12)
	assert.Equal(t, 2.0, *recs[2].RubricFactor)

	sum := 0.0
	for _, r := range recs {
		sum += *r.RubricScore
	}
	assert.InDelta(t, 0.75, sum, 1e-12)
}

func TestRubricZeroPenaltyIsFullScore(t *testing.T) {
	in := wide(nil, quality.WideRow{
		Job:   job("1"),
		Rater: map[string]string{"typo": "", "wrong_fact": "0"},
	})
	for _, threshold := range []float64{1.0, 0.8, 0.0} {
		opts := rubricOpts()
		opts.PassThreshold = threshold
		recs, _ := Rubric(in, opts)
		require.Len(t, recs, 3)
		assert.Equal(t, 1.0, *recs[0].JobScore)
		assert.True(t, *recs[0].JobCorrect, "threshold %v", threshold)
	}
}

func TestRubricBottomScoreAndAudit(t *testing.T) {
	opts := rubricOpts()
	opts.BottomScore = 0.8
	opts.PassThreshold = 0.8
	in := wide(nil,
		quality.WideRow{Job: job("1"), Rater: map[string]string{"wrong_fact": "9"}},
		quality.WideRow{Job: quality.Job{RaterID: "10", JobID: "2"}, Rater: map[string]string{"typo": "1"}},
	)
	recs, drops := Rubric(in, opts)
	require.Len(t, recs, 3)
	assert.Equal(t, 0.8, *recs[0].JobScore)
	assert.True(t, *recs[0].JobCorrect)
	assert.Equal(t, 1, drops[quality.DropNotAudited])
}

func TestRubricProvidedOutcome(t *testing.T) {
	opts := rubricOpts()
	opts.ProvidedOutcome = true
	opts.PositiveOutcomes = []string{"Approved"}
	in := wide(nil,
		quality.WideRow{Job: job("1"), Rater: map[string]string{"typo": "3"}, Outcome: "Approved"},
		quality.WideRow{Job: job("2"), Outcome: ""},
	)
	recs, drops := Rubric(in, opts)
	require.Len(t, recs, 3)
	assert.True(t, *recs[0].JobCorrect)
	assert.InDelta(t, 0.85, *recs[0].JobScore, 1e-12)
	assert.Equal(t, 1, drops[quality.DropNotAudited])
}

func TestFactor(t *testing.T) {
	assert.Equal(t, 0.0, Factor(""))
	assert.Equal(t, 2.0, Factor("2.7"))
	assert.Equal(t, 1.0, Factor("x"))
	assert.Equal(t, 1.0, Factor("yes"))
	assert.Equal(t, 0.0, Factor("no"))
}

func TestOutcome(t *testing.T) {
	in := wide(nil,
		quality.WideRow{Job: job("1"), Outcome: "AUDIT_APPROVED"},
		quality.WideRow{Job: job("2"), Outcome: "rejected"},
		quality.WideRow{Job: job("3"), Outcome: " "},
		quality.WideRow{Job: job("4"), Outcome: "TRUE"},
	)
	recs, drops := Outcome(in, DefaultOptions())
	require.Len(t, recs, 3)
	assert.True(t, *recs[0].JobCorrect)
	assert.False(t, *recs[1].JobCorrect)
	assert.True(t, *recs[2].JobCorrect)
	assert.Equal(t, 1, drops[quality.DropNotAudited])

	opts := DefaultOptions()
	opts.RequireAudited = false
	recs, _ = Outcome(in, opts)
	require.Len(t, recs, 4)
	assert.False(t, *recs[2].JobCorrect)
}

func TestRunDispatch(t *testing.T) {
	in := wide([]string{"l"}, quality.WideRow{Job: job("1"), Rater: map[string]string{"l": "a"}})
	recs, _, err := Run(quality.BaseMulti, in, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, _, err = Run(quality.Base("bogus"), in, DefaultOptions())
	assert.True(t, errors.Is(err, ErrUnknownBase))

	_, _, err = Run(quality.BaseRubric, &quality.Intermediate{Layout: quality.LayoutLong}, DefaultOptions())
	assert.Error(t, err)
}

func TestNormalizersArePure(t *testing.T) {
	in := wide([]string{"l"}, quality.WideRow{
		Job:     job("1"),
		Rater:   map[string]string{"l": "yes"},
		Auditor: map[string]string{"l": "no"},
	})
	a, _ := Audit(in, binaryOpts("l", "yes"))
	b, _ := Audit(in, binaryOpts("l", "yes"))
	assert.Equal(t, a, b)
}

func TestBoolish(t *testing.T) {
	for _, s := range []string{"1", "TRUE", " yes", "agree", "2.0"} {
		v, ok := Boolish(s)
		assert.True(t, ok && v, s)
	}
	for _, s := range []string{"0", "No", "disagree", "incorrect"} {
		v, ok := Boolish(s)
		assert.True(t, ok && !v, s)
	}
	_, ok := Boolish("maybe")
	assert.False(t, ok)
}
