package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FileFilter is the file-name matching rule of a format configuration.
type FileFilter struct {
	BeginsWith string     `json:"begins_with"`
	EndsWith   string     `json:"ends_with"`
	Contains   StringList `json:"contains"`
	Regex      string     `json:"regex"`
}

// Pattern returns the regular expression source for the filter. An explicit
// Regex wins; otherwise the parts are escaped and chained with ".*".
func (f FileFilter) Pattern() string {
	if strings.TrimSpace(f.Regex) != "" {
		return f.Regex
	}
	if f.BeginsWith == "" && f.EndsWith == "" && len(f.Contains) == 0 {
		return ".*"
	}

	var b strings.Builder
	b.WriteString("^")
	if f.BeginsWith != "" {
		b.WriteString(regexp.QuoteMeta(f.BeginsWith))
	} else {
		b.WriteString(".*")
	}
	for _, c := range f.Contains {
		if c == "" {
			continue
		}
		b.WriteString(".*")
		b.WriteString(regexp.QuoteMeta(c))
	}
	b.WriteString(".*")
	if f.EndsWith != "" {
		b.WriteString(regexp.QuoteMeta(f.EndsWith))
	}
	b.WriteString("$")
	return b.String()
}

// Compile compiles the filter's pattern. Matches are anchored at the start
// of the file name.
func (f FileFilter) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + f.Pattern() + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid file filter %q: %w", f.Pattern(), err)
	}
	return re, nil
}

// StringList decodes from either a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}
