// Package normalize reduces adapter output to canonical quality records.
//
// There are exactly four base normalizers (Audit, Multi, Rubric and Outcome),
// each a pure function of an intermediate table and Options. Rows that
// cannot be used are counted in the returned Drops rather than reported as
// errors.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dataste0/quality-pipeline/internal/quality"
	"github.com/Dataste0/quality-pipeline/internal/week"
)

// ErrUnknownBase is returned when no normalizer exists for a base.
var ErrUnknownBase = errors.New("model base undetermined")

// Auditor column types for audit labels.
const (
	AuditorAnswer       = "answer"
	AuditorAgreement    = "agreement"
	AuditorDisagreement = "disagreement"
)

// DefaultRubricName names the synthetic no-penalty rubric row.
const DefaultRubricName = "default_rubric"

// LabelSpec configures one label.
type LabelSpec struct {
	Name          string
	Binary        bool
	PositiveValue string
	Weight        float64
	AuditorType   string
}

// RubricSpec is a rubric item with its penalty as a fraction of the job score.
type RubricSpec struct {
	Name    string
	Penalty float64
}

// Options configures the normalizers.
type Options struct {
	Labels        map[string]LabelSpec
	DefaultWeight float64
	CaseSensitive bool

	Rubric        []RubricSpec
	DefaultRubric string
	PassThreshold float64
	BottomScore   float64
	ProvidedScore bool

	ProvidedOutcome  bool
	PositiveOutcomes []string
	RequireAudited   bool
}

// DefaultOptions returns options with every default filled in.
func DefaultOptions() Options {
	return Options{
		Labels:         map[string]LabelSpec{},
		DefaultWeight:  1,
		DefaultRubric:  DefaultRubricName,
		PassThreshold:  1,
		RequireAudited: true,
	}
}

// Label returns the spec for a label, falling back to a non-binary answer
// label with the default weight.
func (o Options) Label(name string) LabelSpec {
	spec, ok := o.Labels[name]
	if !ok {
		spec = LabelSpec{Name: name}
	}
	if spec.Weight == 0 {
		spec.Weight = o.DefaultWeight
		if spec.Weight == 0 {
			spec.Weight = 1
		}
	}
	if spec.AuditorType == "" {
		spec.AuditorType = AuditorAnswer
	}
	if spec.Binary && spec.PositiveValue == "" {
		spec.PositiveValue = "true"
	}
	return spec
}

// Drops counts discarded rows by reason.
type Drops map[string]int

func (d Drops) add(reason string) {
	d[reason]++
}

// Run dispatches to the normalizer for base.
func Run(base quality.Base, in *quality.Intermediate, opts Options) ([]quality.Record, Drops, error) {
	switch base {
	case quality.BaseAudit:
		recs, drops := Audit(in, opts)
		return recs, drops, nil
	case quality.BaseMulti:
		recs, drops := Multi(in, opts)
		return recs, drops, nil
	case quality.BaseRubric:
		if in.Layout != quality.LayoutWide {
			return nil, nil, fmt.Errorf("rubric normalizer requires the wide layout")
		}
		recs, drops := Rubric(in, opts)
		return recs, drops, nil
	case quality.BaseOutcome:
		if in.Layout != quality.LayoutWide {
			return nil, nil, fmt.Errorf("outcome normalizer requires the wide layout")
		}
		recs, drops := Outcome(in, opts)
		return recs, drops, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBase, base)
}

// ContentWeek returns the week ending of an ISO job date, or "".
func ContentWeek(jobDate string) string {
	if jobDate == "" {
		return ""
	}
	w, err := week.Parse(jobDate)
	if err != nil {
		return ""
	}
	return week.Format(w)
}

func baseRecord(base quality.Base, job quality.Job) quality.Record {
	return quality.Record{
		Base:        string(base),
		Workflow:    job.Workflow,
		JobID:       job.JobID,
		JobDate:     job.JobDate,
		RaterID:     job.RaterID,
		AuditorID:   quality.StrOrNil(job.AuditorID),
		ContentWeek: ContentWeek(job.JobDate),
	}
}

var (
	trueTokens  = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "t": true, "agree": true, "correct": true}
	falseTokens = map[string]bool{"0": true, "false": true, "no": true, "n": true, "f": true, "disagree": true, "incorrect": true}
)

// Boolish interprets agreement-style answers. ok is false when the value is
// neither a recognized true nor false token.
func Boolish(s string) (value, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if trueTokens[s] {
		return true, true
	}
	if falseTokens[s] {
		return false, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, true
	}
	return false, false
}

func (o Options) fold(s string) string {
	s = strings.TrimSpace(s)
	if !o.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}
