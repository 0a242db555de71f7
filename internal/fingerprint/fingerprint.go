// Package fingerprint computes the hashes used for change detection.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Header returns the fingerprint of a header shape: MD5 over the sorted
// column names joined with "|". Column order does not matter.
func Header(columns []string) string {
	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)
	joined := strings.TrimSpace(strings.Join(sorted, "|"))
	sum := md5.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Identity returns a cheap fingerprint of a file's name and size.
func Identity(name string, size int64) string {
	h := xxhash.New()
	h.WriteString(name)
	h.WriteString("|")
	h.WriteString(strconv.FormatInt(size, 10))
	return format(h.Sum64())
}

// Content returns the fingerprint of a file's bytes.
func Content(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return format(h.Sum64()), nil
}

// Entry is one file considered by a directory fingerprint.
type Entry struct {
	RelPath string
	Size    int64
}

// Directory returns the fingerprint of a folder from its base name, the
// project's active flag and the (relative path, size) pairs of its files.
// Entries are sorted before hashing, so input order does not matter.
func Directory(base string, active bool, entries []Entry) string {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })

	h := xxhash.New()
	h.WriteString(base)
	h.WriteString(strconv.FormatBool(active))
	for _, e := range sorted {
		h.WriteString(filepath.ToSlash(e.RelPath))
		h.WriteString(":")
		h.WriteString(strconv.FormatInt(e.Size, 10))
		h.WriteString("\n")
	}
	return format(h.Sum64())
}

func format(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
