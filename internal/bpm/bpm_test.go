package bpm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bpm-calibrate/internal/fcs"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
)

const sampleConfig = `
# BPM experiment template
rffe_board_version = rffe_v1
rffe_attenuators = 7,14 # dB per stage
rffe_signal_carrier_maxpower = -10 dBm
rffe_switching = on
rffe_switching_phase = 4
rffe_switching_frequency_ratio = 97 # odd on purpose
dsp_sausaging = off
dsp_deswitching_phase = 10
adc_clock_sampling_harmonic = 382 samples
data_signature_method = sha-256
bpm_Kx = 10000000 nm
bpm_Ky = 10000000 nm
`

func mustParse(t *testing.T, text string) *metadata.Record {
	t.Helper()
	rec, err := metadata.Parse(text)
	require.NoError(t, err)
	return rec
}

func TestDerive(t *testing.T) {
	cfg := mustParse(t, sampleConfig)

	testCases := []struct {
		dp   Datapath
		want Derived
	}{
		{Raw, Derived{DecimationRatio: 1, Channel: 0, Samples: 100000, Layout: "raw", PhaseOffset: 6, ClockDivider: 44}},
		{TurnByTurn, Derived{DecimationRatio: 382, Channel: 1, Samples: 100000, Layout: "baseband", PhaseOffset: 6, ClockDivider: 44}},
		{FastOrbitFeedback, Derived{DecimationRatio: 1112, Channel: 3, Samples: 500000, Layout: "baseband", PhaseOffset: 6, ClockDivider: 44}},
	}
	for _, tc := range testCases {
		t.Run(tc.dp.Tag(), func(t *testing.T) {
			got, err := Derive(cfg, tc.dp)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Derive mismatch (-want +got):\n%s", diff)
			}

			again, err := Derive(cfg, tc.dp)
			require.NoError(t, err)
			assert.Equal(t, got, again, "Derive must be deterministic")
		})
	}
}

func TestDerive_RawNeedsNoHarmonic(t *testing.T) {
	cfg := mustParse(t, "dsp_deswitching_phase = 0\nrffe_switching_phase = 0\nrffe_switching_frequency_ratio = 8\n")

	d, err := Derive(cfg, Raw)
	require.NoError(t, err)
	assert.Equal(t, 0, d.ClockDivider)

	_, err = Derive(cfg, TurnByTurn)
	assert.ErrorIs(t, err, metadata.ErrMissingKey)
}

func TestDerive_Errors(t *testing.T) {
	cfg := mustParse(t, "dsp_deswitching_phase = ten\nrffe_switching_phase = 0\nrffe_switching_frequency_ratio = 8\n")
	_, err := Derive(cfg, Raw)
	assert.Error(t, err)

	_, err = Derive(mustParse(t, sampleConfig), Datapath(7))
	assert.Error(t, err)
}

func TestClockDivider(t *testing.T) {
	testCases := []struct{ ratio, want int }{
		{100, 46},
		{97, 44},
		{8, 0},
		{0, -4},
		{-3, -6},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ClockDivider(tc.ratio), "ratio %d", tc.ratio)
	}
}

func TestResolve(t *testing.T) {
	s, err := Resolve(mustParse(t, sampleConfig))
	require.NoError(t, err)

	want := Settings{
		Switching:   On,
		Sausaging:   Off,
		Digest:      DigestSHA256,
		Kx:          "10000000",
		Ky:          "10000000",
		Attenuators: []string{"7", "14"},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Resolve mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Choices(t *testing.T) {
	base := mustParse(t, sampleConfig)

	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad_switching", KeySwitching, "yes"},
		{"bad_sausaging", KeySausaging, "maybe"},
		{"bad_digest", KeySignatureMethod, "crc32"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(base.With(tc.key, tc.value))
			var ce *ChoiceError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tc.key, ce.Field)
			assert.Equal(t, tc.value, ce.Value)
		})
	}

	_, err := Resolve(base.With(KeyAttenuators, "7 dB, x"))
	assert.Error(t, err)

	_, err = Resolve(base.With(KeyKx, "wide"))
	assert.Error(t, err)
}

func TestLogicDeviceArgs(t *testing.T) {
	cfg := mustParse(t, sampleConfig)
	s, err := Resolve(cfg)
	require.NoError(t, err)
	d, err := Derive(cfg, TurnByTurn)
	require.NoError(t, err)

	got := LogicDeviceArgs(s, d, "10.0.18.1")
	want := fcs.Command{
		Stage: fcs.StageLogicDevice,
		Args: []string{
			"--setdivclk", "44",
			"--setkx", "10000000",
			"--setky", "10000000",
			"--setphaseclk", "6",
			"--setswon",
			"--setwdwoff",
			"--setsamples", "100000",
			"--setchan", "1",
			"--setfpgahostname", "10.0.18.1",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LogicDeviceArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestRFFrontendArgs(t *testing.T) {
	s := Settings{Switching: Off, Attenuators: []string{"0", "7", "28"}}
	got := RFFrontendArgs(s, "10.0.17.200")
	want := fcs.Command{
		Stage: fcs.StageRFFrontend,
		Args: []string{
			"--setfeswoff",
			"--setfeatt1", "0",
			"--setfeatt2", "7",
			"--setfeatt3", "28",
			"--setrffehostname", "10.0.17.200",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RFFrontendArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestAttenuators_UnitsPerItem(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{"bare", "rffe_attenuators = 0,7", []string{"0", "7"}},
		{"units", "rffe_attenuators = 0 dB, 7 dB", []string{"0", "7"}},
		{"units_and_comment", "rffe_attenuators = 14 dB, 21 dB, 28 dB # three stages", []string{"14", "21", "28"}},
		{"single_stage", "rffe_attenuators = 5 dB", []string{"5"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Attenuators(mustParse(t, tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAttenuators_FormattedOverlayKeepsStages(t *testing.T) {
	cfg := mustParse(t, sampleConfig).With(KeyAttenuators, FormatAttenuators([]float64{14, 21}))

	var text string
	for _, line := range cfg.Lines() {
		text += line
	}
	for name, rec := range map[string]*metadata.Record{"overlay": cfg, "reparsed": mustParse(t, text)} {
		s, err := Resolve(rec)
		require.NoError(t, err, name)
		assert.Equal(t, []string{"14", "21"}, s.Attenuators, name)
		assert.Equal(t, []string{"--setfeswon", "--setfeatt1", "14", "--setfeatt2", "21", "--setrffehostname", "h"},
			RFFrontendArgs(s, "h").Args, name)
	}
}

func TestTriggerAndReadCurveArgs(t *testing.T) {
	assert.Equal(t, fcs.Command{Stage: fcs.StageTrigger, Args: []string{"--startacq", "--setfpgahostname", "fpga"}}, TriggerArgs("fpga"))
	assert.Equal(t, fcs.Command{Stage: fcs.StageReadCurve, Args: []string{"--getcurve", "3", "--setfpgahostname", "fpga"}}, ReadCurveArgs(Derived{Channel: 3}, "fpga"))
}

func TestDigestMethod_Sum(t *testing.T) {
	payload := []byte("10 11 -9 80\n54 5 6 98\n")

	testCases := []struct {
		name string
		want string
	}{
		{"md5", "644122e3b29859f1e4b829a818b2bb47"},
		{"sha-1", "2ee5110d41c477cb3ad6f5834e01a253547f3382"},
		{"sha-256", "2d9f93f0a819d65e2ecbeb89dd9c0f07027647b0896c6bcc5aae8bf2cb50340e"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ParseDigestMethod(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.name, m.String())
			assert.Equal(t, tc.want, m.Sum(payload))
		})
	}

	_, err := ParseDigestMethod("sha256")
	var ce *ChoiceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, `invalid data_signature_method "sha256": expected one of md5, sha-1, sha-256`, err.Error())
}

func TestParseBoardVersion(t *testing.T) {
	v, err := ParseBoardVersion("rffe_v1")
	require.NoError(t, err)
	assert.Equal(t, BoardV1, v)

	v, err = ParseBoardVersion("rffe_v2_rev3")
	require.NoError(t, err)
	assert.Equal(t, BoardV2, v)
	assert.Equal(t, "rffe_v2", v.String())

	_, err = ParseBoardVersion("rffe_v3")
	var ce *ChoiceError
	assert.True(t, errors.As(err, &ce))
}

func TestParseDatapaths(t *testing.T) {
	ds, err := ParseDatapaths([]string{"fofb", "adc"})
	require.NoError(t, err)
	assert.Equal(t, []Datapath{FastOrbitFeedback, Raw}, ds)
	assert.Equal(t, []string{"fofb", "adc"}, DatapathTags(ds))

	_, err = ParseDatapaths([]string{"adc", "adc"})
	assert.Error(t, err)

	_, err = ParseDatapath("iq")
	var ce *ChoiceError
	assert.True(t, errors.As(err, &ce))
}

func TestFirstTokenAndFormat(t *testing.T) {
	assert.Equal(t, "7", FirstToken("  7 dB"))
	assert.Equal(t, "", FirstToken("   "))
	assert.Equal(t, "0 dB, 7 dB, 14.5 dB", FormatAttenuators([]float64{0, 7, 14.5}))

	cfg := mustParse(t, sampleConfig)
	p, err := FloatField(cfg, KeyCarrierMaxPower)
	require.NoError(t, err)
	assert.Equal(t, -10.0, p)
}
