package metadata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
)

// Keys of the fields filled in automatically for every capture.
const (
	KeyOriginalFilename = "data_original_filename"
	KeySignature        = "data_signature"
	KeyDecimationRatio  = "dsp_data_rate_decimation_ratio"
	KeyTimestampStart   = "timestamp_start"
	KeyFileStructure    = "data_file_structure"
	KeyFileFormat       = "data_file_format"
)

// FileFormat is the only payload encoding the capture step produces.
const FileFormat = "ascii"

// Extension replaces the artifact extension to form the metadata path.
const Extension = ".metadata"

const timestampLayout = "2006-01-02T15:04:05"

// AutoFields are the values the pipeline computes for one capture.
type AutoFields struct {
	ArtifactPath    string // only the basename is written
	Signature       string
	DecimationRatio string
	Start           time.Time
	Layout          string
}

func (a AutoFields) record() map[string]string {
	return map[string]string{
		KeyOriginalFilename: filepath.Base(a.ArtifactPath),
		KeySignature:        a.Signature,
		KeyDecimationRatio:  a.DecimationRatio,
		KeyTimestampStart:   FormatTimestamp(a.Start),
		KeyFileStructure:    a.Layout,
		KeyFileFormat:       FileFormat,
	}
}

// Synthesize merges the base configuration with the automatic fields and
// returns the lines sorted lexicographically. An automatic field replaces a
// base entry with the same key, so a metadata document can be reused as a
// template without carrying stale signatures forward.
func Synthesize(base *Record, auto AutoFields) []string {
	merged := base.WithAll(auto.record())
	lines := merged.Lines()
	sort.Strings(lines)
	return lines
}

// DocumentPath returns the metadata path for an artifact: same directory and
// stem, ".metadata" extension.
func DocumentPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + Extension
}

// WriteDocument writes lines to path. It fails with fsutil.ErrPathExists if
// the path is taken and removes its own partial output on a write error.
func WriteDocument(fs fsutil.FileSystem, path string, lines []string) error {
	w, err := fs.CreateExclusive(path)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	for _, line := range lines {
		if _, err := w.Write([]byte(line)); err != nil {
			w.Close()
			fs.Remove(path)
			return fmt.Errorf("write metadata %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		fs.Remove(path)
		return fmt.Errorf("close metadata %s: %w", path, err)
	}
	return nil
}

// FormatTimestamp renders t in UTC as ISO 8601 with nine fractional digits.
// The fraction is truncated, never rounded.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s.%09dZ", t.Format(timestampLayout), t.Nanosecond())
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout+".000000000Z", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
