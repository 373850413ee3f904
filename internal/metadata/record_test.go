package metadata

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bpm-calibrate/internal/fsutil"
)

func TestParse_Values(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		key   string
		want  string
	}{
		{"unit_and_comment", "a = 1 dB # note", "a", "1"},
		{"plain", "rffe_switching = on", "rffe_switching", "on"},
		{"double_quotes", `name = "rffe_v1 board"`, "name", "rffe_v1"},
		{"single_quotes", "name = 'sha-256'", "name", "sha-256"},
		{"mismatched_quotes_kept", `name = "abc'`, "name", `"abc'`},
		{"comment_inside_value", "x = 12#34", "x", "12"},
		{"equals_in_value", "x = a=b c", "x", "a=b"},
		{"list_without_spaces", "rffe_attenuators = 0,0", "rffe_attenuators", "0,0"},
		{"list_with_units", "rffe_attenuators = 0 dB, 7 dB", "rffe_attenuators", "0,7"},
		{"quoted_list_with_units", `rffe_attenuators = "14 dB, 21 dB, 28 dB"`, "rffe_attenuators", "14,21,28"},
		{"list_with_empty_item", "x = 1 dB,,2", "x", "1,,2"},
		{"negative", "rffe_signal_carrier_maxpower = -10 dBm", "rffe_signal_carrier_maxpower", "-10"},
		{"empty_value", "x =", "x", ""},
		{"surrounding_whitespace", "   key   =    value   ", "key", "value"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Parse(tc.input)
			require.NoError(t, err)
			got, err := rec.Get(tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_IgnoresLinesWithoutSeparator(t *testing.T) {
	rec, err := Parse("# a comment\n\njust words\nkey = value\n# b = c\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, rec.Keys())
}

func TestParse_LastWinsKeepsFirstPosition(t *testing.T) {
	rec, err := Parse("a = 1\nb = 2\na = 3\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, rec.Keys())
	v, _ := rec.Get("a")
	assert.Equal(t, "3", v)
}

func TestRecord_GetMissingKey(t *testing.T) {
	rec := NewRecord("a", "1")

	_, err := rec.Get("b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))

	var mk *MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.Equal(t, "b", mk.Key)
}

func TestRecord_WithDoesNotMutateBase(t *testing.T) {
	base := NewRecord("rffe_switching", "off", "b", "2")

	overlaid := base.WithAll(map[string]string{
		"rffe_switching":   "on",
		"rffe_attenuators": "7 dB, 14 dB",
	})

	v, _ := base.Get("rffe_switching")
	assert.Equal(t, "off", v, "base must not change")
	_, ok := base.Lookup("rffe_attenuators")
	assert.False(t, ok, "base must not gain keys")

	v, _ = overlaid.Get("rffe_switching")
	assert.Equal(t, "on", v)
	v, _ = overlaid.Get("rffe_attenuators")
	assert.Equal(t, "7,14", v, "overlays strip units like Parse")
	assert.Equal(t, []string{"rffe_switching", "b", "rffe_attenuators"}, overlaid.Keys())

	again := overlaid.With("b", "3")
	v, _ = overlaid.Get("b")
	assert.Equal(t, "2", v)
	v, _ = again.Get("b")
	assert.Equal(t, "3", v)
}

func TestRecord_ListRoundTrip(t *testing.T) {
	overlaid := NewRecord("a", "1").With("rffe_attenuators", "14 dB, 21 dB")

	var text string
	for _, line := range overlaid.Lines() {
		text += line
	}
	reparsed, err := Parse(text)
	require.NoError(t, err)
	if diff := cmp.Diff(overlaid.Lines(), reparsed.Lines()); diff != "" {
		t.Errorf("round trip mismatch (-overlaid +reparsed):\n%s", diff)
	}
}

func TestRecord_Lines(t *testing.T) {
	rec := NewRecord("z", "1", "a", "2")
	want := []string{"z = 1\n", "a = 2\n"}
	if diff := cmp.Diff(want, rec.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, rec.Len())
}

func TestNewRecord_OddArgsPanics(t *testing.T) {
	assert.Panics(t, func() { NewRecord("a") })
}

func TestParseFile(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	path := filepath.Join("/cfg", "experiment.metadata")
	mfs.WriteFile(path, []byte("data_signature_method = sha-256\n"))

	rec, err := ParseFile(mfs, path)
	require.NoError(t, err)
	v, err := rec.Get("data_signature_method")
	require.NoError(t, err)
	assert.Equal(t, "sha-256", v)

	_, err = ParseFile(mfs, "/cfg/missing.metadata")
	assert.Error(t, err)
}
