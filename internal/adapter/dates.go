package adapter

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Plausible spreadsheet serial numbers (1954 to 2119).
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// ParseDate normalizes a vendor date to yyyy-mm-dd. It accepts the formats
// understood by dateparse and spreadsheet serial numbers. Anything else is
// rejected rather than guessed.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f < maxExcelSerial {
		t := excelEpoch.Add(time.Duration(f * float64(24*time.Hour)))
		return t.Format("2006-01-02"), true
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	if t.Year() < 2000 || t.Year() > 2100 {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
