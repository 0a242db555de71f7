package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dataste0/quality-pipeline/internal/normalize"
	"github.com/Dataste0/quality-pipeline/internal/project"
	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/table"
)

func adapt(t *testing.T, fn Func, raw *table.Table, cfg Config) (*Result, *quality.Diagnostics) {
	t.Helper()
	diag := &quality.Diagnostics{}
	res, err := fn(raw, cfg, diag)
	require.NoError(t, err)
	return res, diag
}

func TestRegistrySelect(t *testing.T) {
	reg := Standard()

	a, err := reg.Select("p1", "uqd")
	require.NoError(t, err)
	assert.NotNil(t, a)

	_, err = reg.Select("p1", "NOPE")
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = reg.Select("p1", FormatAdhoc)
	assert.True(t, errors.Is(err, ErrNoAdhoc))

	reg.RegisterAdhoc("p1", Func(PassFail))
	_, err = reg.Select("p1", "adhoc")
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, reg.AdhocProjects())
	assert.Contains(t, reg.Formats(), FormatSpotcheck)
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2025-01-06":          "2025-01-06",
		"2025-01-06 13:45:00": "2025-01-06",
		"1/6/2025":            "2025-01-06",
		"45292":               "2024-01-01",
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "garbage", "1850-01-01"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, in)
	}
}

func TestLabelBase(t *testing.T) {
	base, golden, err := labelBase(Config{})
	require.NoError(t, err)
	assert.Equal(t, quality.BaseAudit, base)
	assert.False(t, golden)

	base, _, err = labelBase(Config{Base: quality.BaseAudit, Options: project.ModuleConfig{QualityMethodology: "multi"}})
	require.NoError(t, err)
	assert.Equal(t, quality.BaseMulti, base)

	base, golden, err = labelBase(Config{Options: project.ModuleConfig{QualityMethodology: "Golden"}})
	require.NoError(t, err)
	assert.Equal(t, quality.BaseAudit, base)
	assert.True(t, golden)

	_, _, err = labelBase(Config{Base: quality.BaseRubric})
	assert.True(t, errors.Is(err, ErrBaseMismatch))
}

func TestParseDecisionLayouts(t *testing.T) {
	pairs, err := parseDecision(`{"labels":["relevant::yes","topic:: news ","bogus"]}`, false)
	require.NoError(t, err)
	assert.Equal(t, []labelValue{{"relevant", "yes"}, {"topic", "news"}}, pairs)

	pairs, err = parseDecision(`{'labels': ['relevant::no']}`, false)
	require.NoError(t, err)
	assert.Equal(t, []labelValue{{"relevant", "no"}}, pairs)

	rejected := `{"is_rejected": false, "response": "{\"123\": {\"payload\": [{\"values\": {\"a\": [\"x\",\"y\"], \"b\": {\"c\":1}}}]}}"}`
	pairs, err = parseDecision(rejected, false)
	require.NoError(t, err)
	assert.Equal(t, []labelValue{{"a", "x,y"}, {"b", `{"c":1}`}}, pairs)

	pairs, err = parseDecision(`{"q1": "A", "q2": null}`, true)
	require.NoError(t, err)
	assert.Equal(t, []labelValue{{"q1", "A"}, {"q2", ""}}, pairs)

	_, err = parseDecision("not json", false)
	assert.Error(t, err)
}

func TestUQD(t *testing.T) {
	raw := table.New(
		[]string{"actor_id", "quality_actor_id", "job_id", "review_ds", "queue_name", "decision_data", "quality_decision_data"},
		[][]string{
			{"101", "202", "5001", "2025-01-06", "q1", `{"labels":["relevant::yes","topic::news"]}`, `{"labels":["relevant::no","topic::news","extra::x"]}`},
			{"101", "202", "5001", "2025-01-07", "q1", `{'labels': ['relevant::yes']}`, `{"labels":["relevant::yes"]}`},
			{"102", "202", "5002", "2025-01-06", "q1", "not json", `{"labels":[]}`},
			{"abc", "202", "5003", "2025-01-06", "q1", `{"labels":["relevant::yes"]}`, `{"labels":["relevant::yes"]}`},
			{"104", "202", "5004", "garbage", "q1", `{"labels":["relevant::yes"]}`, `{"labels":["relevant::yes"]}`},
		},
	)
	res, diag := adapt(t, UQD, raw, Config{Base: quality.BaseAudit})

	assert.Equal(t, quality.BaseAudit, res.Base)
	assert.Equal(t, []string{"relevant", "topic"}, res.Table.Labels)
	require.Equal(t, 1, res.Table.Len())
	row := res.Table.Wide[0]
	assert.Equal(t, "2025-01-07", row.JobDate)
	assert.Equal(t, "yes", row.Rater["relevant"])
	assert.Equal(t, "202", row.AuditorID)
	assert.Equal(t, map[string]int{
		quality.DropInvalidJSON: 1,
		quality.DropInvalidID:   1,
		quality.DropInvalidDate: 1,
		quality.DropDuplicate:   1,
	}, diag.Dropped)
	assert.NotEmpty(t, diag.Notes)
}

func TestUQDMissingColumns(t *testing.T) {
	raw := table.New([]string{"actor_id"}, [][]string{{"1"}})
	_, err := UQD(raw, Config{}, &quality.Diagnostics{})
	assert.True(t, errors.Is(err, ErrMissingColumns))
}

func TestCVS(t *testing.T) {
	raw := table.New(
		[]string{"rater_id", "entity_id", "sample_ds", "routing_name", "rater_decision_data", "auditor_decision_data"},
		[][]string{
			{"11", "900", "2025-01-08", "r1", `{"labels":["Relevant::yes"]}`, `{"777": "{\"labels\": [\"Relevant::no\"]}"}`},
			{"12", "901", "2025-01-08", "combined_routing", `{"labels":["Relevant::yes"]}`, `{"777": "{\"labels\": [\"Relevant::no\"]}"}`},
		},
	)
	cfg := Config{Options: project.ModuleConfig{
		BinaryLabels: []project.BinaryLabel{{Name: "Relevant", PositiveValue: "yes"}},
	}}
	res, diag := adapt(t, CVS, raw, cfg)

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, []string{"relevant"}, res.Table.Labels)
	assert.Equal(t, "777", res.Table.Wide[0].AuditorID)
	assert.Equal(t, 1, diag.Dropped[quality.DropExcludedWorkflow])

	recs, _, err := normalize.Run(res.Base, res.Table, res.Options)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, quality.FP, *recs[0].ConfusionType)
}

func TestHALORubric(t *testing.T) {
	raw := table.New(
		[]string{"SRT Annotator ID", "Vendor Auditor ID", "SRT Job ID", "Time (PT)", "Vendor Tag", "Vendor Comment", "Grammar"},
		[][]string{
			{"r1", "a1", "j1", "2025-01-06 09:00:00", "Approved", "", "2"},
			{"r2", "a1", "j2", "2025-01-06 09:00:00", "Approved", "missing comma", "0"},
		},
	)
	cfg := Config{Options: project.ModuleConfig{
		Rubric: []project.RubricItem{
			{Column: "Grammar", Name: "grammar", Penalty: project.Num(25)},
			{Column: "Tone", Name: "tone", Penalty: project.Num(10)},
		},
		UseOutcomeProvided:   true,
		IncorrectIfCommented: true,
	}}
	res, diag := adapt(t, HALO, raw, cfg)

	assert.Equal(t, quality.BaseRubric, res.Base)
	assert.Equal(t, []string{"grammar"}, res.Table.Labels)
	assert.Equal(t, DefaultWorkflow, res.Table.Wide[0].Workflow)
	assert.Equal(t, commentedOutcome, res.Table.Wide[1].Outcome)
	assert.NotEmpty(t, diag.Notes)

	recs, _, err := normalize.Run(res.Base, res.Table, res.Options)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.InDelta(t, 0.5, *recs[0].JobScore, 1e-9)
	assert.True(t, *recs[0].JobCorrect)
	assert.False(t, *recs[2].JobCorrect)
}

func TestGALARubricAnswers(t *testing.T) {
	answers := `[{"question":"Has typos?","answer":"[\"Yes\",\"No\",\"Yes\"]"},{"question":"Unrelated","answer":"Yes"}]`
	raw := table.New(
		[]string{"annotator_id", "auditor_id", "task_id", "original_submission_time", "audit_status", "task_name", "QA_score", "rubric_answer"},
		[][]string{
			{"r1", "a1", "t1", "2025-01-06", "AUDIT_APPROVED", "wf", "80", answers},
			{"r2", "", "t2", "2025-01-06", "", "wf", "", ""},
		},
	)
	cfg := Config{Options: project.ModuleConfig{
		Rubric: []project.RubricItem{{Name: "typo", Extended: "Has typos?", Penalty: project.Num(10)}},
	}}
	res, diag := adapt(t, GALA, raw, cfg)

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "2", res.Table.Wide[0].Rater["typo"])
	assert.Equal(t, 1, diag.Dropped[quality.DropNotAudited])

	recs, _, err := normalize.Run(res.Base, res.Table, res.Options)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.InDelta(t, 0.8, *recs[1].JobScore, 1e-9)
	assert.InDelta(t, -0.2, *recs[1].RubricScore, 1e-9)
	assert.True(t, *recs[1].JobCorrect)
}

func TestGenericGolden(t *testing.T) {
	raw := table.New(
		[]string{"rater_id", "job_id", "job_date", "r_rel", "a_rel"},
		[][]string{{"r1", "j1", "2025-01-06", "yes", "yes"}},
	)
	cfg := Config{Options: project.ModuleConfig{
		QualityMethodology: "golden",
		Labels:             []project.LabelConfig{{Name: "rel", RaterColumn: "r_rel", AuditorColumn: "a_rel"}},
	}}
	res, _ := adapt(t, Generic, raw, cfg)

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, GoldenAuditor, res.Table.Wide[0].AuditorID)
	assert.Equal(t, []string{"rel"}, res.Table.Labels)
}

func TestSpotcheckLongLayout(t *testing.T) {
	raw := table.New(
		[]string{"actor_id", "reviewer_id", "actor_answer", "reviewer_answer", "job_date", "job_id", "queue", "label"},
		[][]string{
			{"r1", "a1", "yes", "no", "2025-01-06", "j1", "q", "rel"},
			{"r1", "a1", "x", "x", "2025-01-06", "j1", "q", "topic"},
		},
	)
	res, _ := adapt(t, Spotcheck, raw, Config{})

	assert.Equal(t, quality.LayoutLong, res.Table.Layout)
	assert.Len(t, res.Table.Long, 4)
	assert.Equal(t, []string{"rel", "topic"}, res.Table.Labels)

	recs, _, err := normalize.Run(res.Base, res.Table, res.Options)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestPassFail(t *testing.T) {
	raw := table.New(
		[]string{"rater_id", "job_id", "job_date", "job_correct", "job_score"},
		[][]string{
			{"r1", "j1", "2025-01-06", "pass", "90"},
			{"r2", "j2", "2025-01-06", "", ""},
		},
	)
	res, _ := adapt(t, PassFail, raw, Config{})
	assert.Equal(t, quality.BaseOutcome, res.Base)

	recs, drops, err := normalize.Run(res.Base, res.Table, res.Options)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, *recs[0].JobCorrect)
	assert.InDelta(t, 0.9, *recs[0].JobScore, 1e-9)
	assert.Equal(t, 1, drops[quality.DropNotAudited])
}

func TestDedupeLongKeepsLatest(t *testing.T) {
	rows := []quality.LongRow{
		{Job: quality.Job{RaterID: "r", JobID: "j", JobDate: "2025-01-07"}, Label: "l", Role: quality.RoleRater, Response: "new"},
		{Job: quality.Job{RaterID: "r", JobID: "j", JobDate: "2025-01-06"}, Label: "l", Role: quality.RoleRater, Response: "old"},
	}
	out, dups := dedupeLong(rows)
	assert.Equal(t, 1, dups)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].Response)
}

func TestOptionsPenaltyPercent(t *testing.T) {
	opts := options(project.ModuleConfig{Rubric: []project.RubricItem{
		{Name: "minor", Penalty: project.Num(1)},
		{Name: "major", Penalty: project.Num(25)},
		{Name: "fraction", Penalty: project.Num(0.3)},
		{Name: "full", Penalty: project.Number{Value: 1, Set: true, Percent: true}},
	}})
	require.Len(t, opts.Rubric, 4)
	assert.InDelta(t, 0.01, opts.Rubric[0].Penalty, 1e-9)
	assert.InDelta(t, 0.25, opts.Rubric[1].Penalty, 1e-9)
	assert.InDelta(t, 0.3, opts.Rubric[2].Penalty, 1e-9)
	assert.InDelta(t, 1.0, opts.Rubric[3].Penalty, 1e-9)
}
