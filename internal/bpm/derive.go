package bpm

import (
	"fmt"

	"github.com/banshee-data/bpm-calibrate/internal/metadata"
)

// Fixed acquisition geometry per datapath.
const (
	RawSamples  = 100000
	TbTSamples  = 100000
	FOFBSamples = 500000

	// FOFBDecimation is provisional until the ratio can be read back from
	// the logic device.
	FOFBDecimation = 1112

	LayoutRaw      = "raw"
	LayoutBaseband = "baseband"
)

// Derived holds the hardware-facing values computed for one datapath.
type Derived struct {
	DecimationRatio int
	Channel         int
	Samples         int
	Layout          string
	// PhaseOffset is the deswitching phase relative to the switching phase.
	PhaseOffset int
	// ClockDivider is the switching clock divider programmed into the
	// logic device.
	ClockDivider int
}

// Derive computes the datapath parameters from cfg. It has no side effects.
func Derive(cfg *metadata.Record, dp Datapath) (Derived, error) {
	var d Derived
	switch dp {
	case Raw:
		d = Derived{DecimationRatio: 1, Channel: 0, Samples: RawSamples, Layout: LayoutRaw}
	case TurnByTurn:
		ratio, err := intField(cfg, KeySamplingHarmonic)
		if err != nil {
			return Derived{}, err
		}
		d = Derived{DecimationRatio: ratio, Channel: 1, Samples: TbTSamples, Layout: LayoutBaseband}
	case FastOrbitFeedback:
		d = Derived{DecimationRatio: FOFBDecimation, Channel: 3, Samples: FOFBSamples, Layout: LayoutBaseband}
	default:
		return Derived{}, fmt.Errorf("unknown datapath %d", int(dp))
	}

	deswitching, err := intField(cfg, KeyDeswitchingPhase)
	if err != nil {
		return Derived{}, err
	}
	switching, err := intField(cfg, KeySwitchingPhase)
	if err != nil {
		return Derived{}, err
	}
	d.PhaseOffset = deswitching - switching

	ratio, err := intField(cfg, KeyFrequencyRatio)
	if err != nil {
		return Derived{}, err
	}
	d.ClockDivider = ClockDivider(ratio)
	return d, nil
}

// ClockDivider converts a switching frequency ratio into the divider the
// logic device counter expects: floor(ratio/2) - 4.
func ClockDivider(ratio int) int {
	half := ratio / 2
	if ratio%2 != 0 && ratio < 0 {
		half--
	}
	return half - 4
}

// Settings are the enumerated and list values of a configuration,
// resolved once before any hardware is touched.
type Settings struct {
	Switching   Toggle
	Sausaging   Toggle
	Digest      DigestMethod
	Kx          string
	Ky          string
	Attenuators []string
}

// Resolve reads and validates the fields the command builders need.
func Resolve(cfg *metadata.Record) (Settings, error) {
	var s Settings

	v, err := token(cfg, KeySwitching)
	if err != nil {
		return Settings{}, err
	}
	if s.Switching, err = ParseToggle(KeySwitching, v); err != nil {
		return Settings{}, err
	}

	if v, err = token(cfg, KeySausaging); err != nil {
		return Settings{}, err
	}
	if s.Sausaging, err = ParseToggle(KeySausaging, v); err != nil {
		return Settings{}, err
	}

	if v, err = token(cfg, KeySignatureMethod); err != nil {
		return Settings{}, err
	}
	if s.Digest, err = ParseDigestMethod(v); err != nil {
		return Settings{}, err
	}

	if s.Kx, err = numberField(cfg, KeyKx); err != nil {
		return Settings{}, err
	}
	if s.Ky, err = numberField(cfg, KeyKy); err != nil {
		return Settings{}, err
	}
	if s.Attenuators, err = Attenuators(cfg); err != nil {
		return Settings{}, err
	}
	return s, nil
}
