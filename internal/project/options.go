package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatConfig describes one expected file shape within a project.
type FormatConfig struct {
	Filter      FileFilter   `json:"files_filter"`
	Fingerprint string       `json:"dataset_fingerprint"`
	Module      string       `json:"module"`
	Options     ModuleConfig `json:"module_config"`
}

// ModuleConfig holds adapter options. Each adapter reads the fields it needs.
type ModuleConfig struct {
	InfoColumns        map[string]string `json:"info_columns"`
	QualityMethodology string            `json:"quality_methodology"`
	UseExtracted       bool              `json:"use_extracted"`
	DecisionFormat     string            `json:"decision_format"`
	ExcludedLabels     []string          `json:"excluded_labels"`
	ExcludedWorkflows  []string          `json:"excluded_workflows"`
	BinaryLabels       []BinaryLabel     `json:"binary_labels"`
	LabelWeights       map[string]Number `json:"label_weights"`
	Labels             []LabelConfig     `json:"labels"`
	CaseSensitive      bool              `json:"case_sensitive"`

	Rubric               []RubricItem `json:"rubric"`
	DefaultRubricName    string       `json:"default_rubric_name"`
	PassScore            *Number      `json:"pass_score"`
	BottomScore          *Number      `json:"bottom_score"`
	UseScoreProvided     bool         `json:"use_job_score_provided"`
	UseOutcomeProvided   bool         `json:"use_job_outcome_provided"`
	IncorrectIfCommented bool         `json:"incorrect_if_commented"`
	ApprovedValues       []string     `json:"approved_values"`
	RequireAudited       *bool        `json:"require_audited"`

	ReplaceColumns []ColumnReplacement `json:"replace_columns"`
	ReplaceStrings []StringReplacement `json:"replace_strings"`
	ReplaceRegex   []RegexReplacement  `json:"replace_regex"`
	RosterList     map[string]string   `json:"roster_list"`
}

// Column returns the configured source column for an info key, or def.
func (m ModuleConfig) Column(key, def string) string {
	if v := strings.TrimSpace(m.InfoColumns[key]); v != "" {
		return v
	}
	return def
}

// BinaryLabel marks a dynamically discovered label as binary.
type BinaryLabel struct {
	Name          string `json:"label_name"`
	PositiveValue string `json:"binary_positive_value"`
}

// LabelConfig declares one label for column-mapped exports.
type LabelConfig struct {
	Name              string  `json:"label_name"`
	RaterColumn       string  `json:"rater_label_column"`
	AuditorColumn     string  `json:"auditor_label_column"`
	AuditorColumnType string  `json:"auditor_column_type"`
	Binary            bool    `json:"is_label_binary"`
	PositiveValue     string  `json:"label_binary_pos_value"`
	Weight            *Number `json:"weight"`
	RaterNotRecorded  bool    `json:"rater_answer_not_recorded"`
}

// RubricItem is one penalty-bearing rubric column.
type RubricItem struct {
	Column   string `json:"rubric_column"`
	Name     string `json:"rubric_name"`
	Extended string `json:"rubric_extended"`
	Penalty  Number `json:"penalty_score"`
}

// ColumnReplacement renames a raw column before the adapter runs.
type ColumnReplacement struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// StringReplacement replaces exact cell values of a column.
type StringReplacement struct {
	Column string `json:"column"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// RegexReplacement rewrites cells of a column with a regular expression.
type RegexReplacement struct {
	Column      string `json:"column"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// Number is a float that also accepts numeric strings, percentages and
// blanks in JSON. Blank and null decode to zero with Set false. Percent
// records that the value was written as "N%" and is already a fraction.
type Number struct {
	Value   float64
	Set     bool
	Percent bool
}

// Num builds a set Number.
func Num(v float64) Number { return Number{Value: v, Set: true} }

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, ok, err := parseNumber(s)
		if err != nil {
			return err
		}
		*n = Number{Value: v, Set: ok, Percent: ok && strings.HasSuffix(strings.TrimSpace(s), "%")}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = Num(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	if n.Percent {
		return json.Marshal(strconv.FormatFloat(n.Value*100, 'f', -1, 64) + "%")
	}
	return json.Marshal(n.Value)
}

// Or returns the value, or def when unset.
func (n *Number) Or(def float64) float64 {
	if n == nil || !n.Set {
		return def
	}
	return n.Value
}

// Penalty reads a rubric penalty as a fraction. Plain values of 1 or more
// are percentages, so 1 means 1% and 25 means 25%. "100%" stays 1.
func (n *Number) Penalty() float64 {
	if n == nil || !n.Set {
		return 0
	}
	if n.Percent || n.Value < 1 {
		return n.Value
	}
	return n.Value / 100
}

// Fraction returns values above 1 divided by 100, so both 5 and 0.05 mean 5%.
func Fraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

func parseNumber(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	if percent {
		v /= 100
	}
	return v, true, nil
}
