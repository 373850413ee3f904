package bpm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/bpm-calibrate/internal/metadata"
)

// Experiment configuration keys read by this package.
const (
	KeyBoardVersion     = "rffe_board_version"
	KeyAttenuators      = "rffe_attenuators"
	KeyCarrierMaxPower  = "rffe_signal_carrier_maxpower"
	KeySwitching        = "rffe_switching"
	KeySwitchingPhase   = "rffe_switching_phase"
	KeyFrequencyRatio   = "rffe_switching_frequency_ratio"
	KeySausaging        = "dsp_sausaging"
	KeyDeswitchingPhase = "dsp_deswitching_phase"
	KeySamplingHarmonic = "adc_clock_sampling_harmonic"
	KeySignatureMethod  = "data_signature_method"
	KeyKx               = "bpm_Kx"
	KeyKy               = "bpm_Ky"
)

// FirstToken returns the first whitespace-delimited token of s, so
// "7 dB" reads as "7".
func FirstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func token(cfg *metadata.Record, key string) (string, error) {
	v, err := cfg.Get(key)
	if err != nil {
		return "", err
	}
	return FirstToken(v), nil
}

func intField(cfg *metadata.Record, key string) (int, error) {
	v, err := token(cfg, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func numberField(cfg *metadata.Record, key string) (string, error) {
	v, err := token(cfg, key)
	if err != nil {
		return "", err
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return "", fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

// FloatField reads the leading number of key.
func FloatField(cfg *metadata.Record, key string) (float64, error) {
	v, err := token(cfg, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

// Attenuators splits the comma separated attenuator list into one numeric
// token per stage, in declared order.
func Attenuators(cfg *metadata.Record) ([]string, error) {
	raw, err := cfg.Get(KeyAttenuators)
	if err != nil {
		return nil, err
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for i, item := range items {
		v := FirstToken(item)
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("parse %s stage %d: %w", KeyAttenuators, i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatAttenuators renders stage values as "0 dB, 7 dB".
func FormatAttenuators(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64) + " dB"
	}
	return strings.Join(parts, ", ")
}
