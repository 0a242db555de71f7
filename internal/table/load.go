package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrEmpty is returned when a source file has no header or no data rows.
	ErrEmpty = errors.New("empty source file")
	// ErrUnsupported is returned for file types that cannot be read.
	ErrUnsupported = errors.New("unsupported file type")
)

// headerProbeBytes bounds how much of a CSV is read to inspect its header.
const headerProbeBytes = 1 << 20

// Load reads a CSV or XLSX file. XLSX files are read from their first sheet.
func Load(path string) (*Table, error) {
	return LoadSheet(path, "")
}

// LoadSheet reads a file; sheet selects the XLSX sheet and is ignored for CSV.
func LoadSheet(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		records, err := parseCSV(data, false)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return fromRecords(records)
	case ".xlsx", ".xlsm":
		records, err := readXLSX(path, sheet, -1)
		if err != nil {
			return nil, err
		}
		return fromRecords(records)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

// ReadHeader returns a file's column names without loading the whole file.
func ReadHeader(path string) ([]string, error) {
	records, err := readPrefix(path, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = cleanHeader(h)
	}
	return header, nil
}

// HasDataRow reports whether a file has at least one non-blank row after its header.
func HasDataRow(path string) (bool, error) {
	records, err := readPrefix(path, 2)
	if err != nil {
		return false, err
	}
	return len(records) >= 2, nil
}

// Supported reports whether the loader can read files with this extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	t := New(records[0], records[1:])
	if t.Len() == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// readPrefix returns up to n non-blank records from the start of a file.
func readPrefix(path string, n int) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, headerProbeBytes))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if len(data) == headerProbeBytes {
			data = trimPartialRune(data)
		}
		records, err := parseCSV(data, true)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if len(records) > n {
			records = records[:n]
		}
		return records, nil
	case ".xlsx", ".xlsm":
		return readXLSX(path, "", n)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

// parseCSV decodes raw bytes as UTF-8, falling back to Latin-1, and parses
// strictly before retrying with lazy quotes. With partial set, a parse error
// after at least one record is tolerated (the input was truncated).
func parseCSV(data []byte, partial bool) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decoding latin-1: %w", err)
		}
		data = decoded
	}

	records, err := readAll(data, false)
	if err == nil {
		return records, nil
	}
	lazy, lazyErr := readAll(data, true)
	if lazyErr == nil || (partial && len(lazy) > 0) {
		return lazy, nil
	}
	return nil, err
}

// trimPartialRune drops a multi-byte character cut off at the end of a
// truncated read.
func trimPartialRune(data []byte) []byte {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			return data[:i]
		}
		break
	}
	return data
}

func readAll(data []byte, lazy bool) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazy
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		if blank(rec) {
			continue
		}
		records = append(records, rec)
	}
}

// readXLSX streams up to limit non-blank rows (all rows when limit < 0).
func readXLSX(path, sheet string, limit int) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmpty
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("reading row of %s: %w", path, err)
		}
		if blank(cols) {
			continue
		}
		records = append(records, cols)
		if limit >= 0 && len(records) >= limit {
			break
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", path, err)
	}
	return records, nil
}
