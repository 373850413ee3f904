// Package metadata reads experiment configuration files and writes the
// metadata documents that accompany every capture artifact.
//
// Both use the same line format:
//
//	name = value [unit] [# comment]
//
// Only the leading token of the value is kept when parsing, so units and
// comments are dropped. A Record is immutable: overlays return a copy.
package metadata

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
)

const (
	commentChar   = "#"
	optionChar    = "="
	listSeparator = ","
)

// ErrMissingKey is matched by every MissingKeyError.
var ErrMissingKey = errors.New("missing key")

// MissingKeyError reports a required configuration field that is absent.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing key %q", e.Key)
}

// Unwrap lets errors.Is match ErrMissingKey.
func (e *MissingKeyError) Unwrap() error { return ErrMissingKey }

// Record is an ordered name to value mapping.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds a record from alternating key, value pairs. It panics on
// an odd number of arguments; it is meant for literals in code and tests.
func NewRecord(kv ...string) *Record {
	if len(kv)%2 != 0 {
		panic("metadata: NewRecord needs key/value pairs")
	}
	r := &Record{values: make(map[string]string, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		r.set(kv[i], kv[i+1])
	}
	return r
}

// Parse reads configuration text. Lines without "=" are ignored, "#"
// truncates the rest of a line and one layer of matching quotes is removed.
// Units are stripped: only the first whitespace-delimited token of the value
// survives, or of each item of a comma separated list, so "0 dB, 7 dB"
// reads as "0,7". When a key repeats, the last value wins and the key keeps
// its first position.
func Parse(text string) (*Record, error) {
	r := &Record{values: make(map[string]string)}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, commentChar); i >= 0 {
			line = line[:i]
		}
		option, value, ok := strings.Cut(line, optionChar)
		if !ok {
			continue
		}
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		r.set(option, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan configuration: %w", err)
	}
	return r, nil
}

// ParseFile reads and parses the configuration file at path.
func ParseFile(fs fsutil.FileSystem, path string) (*Record, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %w", path, err)
	}
	rec, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse configuration %s: %w", path, err)
	}
	return rec, nil
}

func canonicalValue(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if first == last && (first == '"' || first == '\'') {
			v = v[1 : len(v)-1]
		}
	}
	items := strings.Split(v, listSeparator)
	for i, item := range items {
		items[i] = firstField(item)
	}
	return strings.Join(items, listSeparator)
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// set stores the canonical form of value, so parsed and overlaid values
// follow the same unit policy.
func (r *Record) set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = canonicalValue(value)
}

// Get returns the value for key or a *MissingKeyError.
func (r *Record) Get(key string) (string, error) {
	v, ok := r.values[key]
	if !ok {
		return "", &MissingKeyError{Key: key}
	}
	return v, nil
}

// Lookup returns the value for key and whether it was present.
func (r *Record) Lookup(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Len returns the number of keys.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// With returns a copy of r with key set to value. r is not modified.
func (r *Record) With(key, value string) *Record {
	return r.WithAll(map[string]string{key: value})
}

// WithAll returns a copy of r with every overlay entry applied. New keys are
// appended in sorted order so the result does not depend on map iteration.
// Overlay values are canonicalised the same way Parse canonicalises them.
func (r *Record) WithAll(overlay map[string]string) *Record {
	out := &Record{
		keys:   make([]string, len(r.keys), len(r.keys)+len(overlay)),
		values: make(map[string]string, len(r.values)+len(overlay)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = v
	}
	for _, k := range sortedKeys(overlay) {
		out.set(k, overlay[k])
	}
	return out
}

// Lines renders the record as "key = value\n" lines in insertion order.
func (r *Record) Lines() []string {
	lines := make([]string, 0, len(r.keys))
	for _, k := range r.keys {
		lines = append(lines, formatLine(k, r.values[k]))
	}
	return lines
}

func formatLine(key, value string) string {
	return key + " = " + value + "\n"
}
