package sweep

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/metadata"
)

// Point is one assignment of the sweep axes. Apply never modifies base.
type Point interface {
	Apply(base *metadata.Record) *metadata.Record
	// Namespace is the output subdirectory for the point's runs.
	Namespace() string
	String() string
}

// SinglePoint runs the base configuration unchanged in the output root.
type SinglePoint struct{}

func (SinglePoint) Apply(base *metadata.Record) *metadata.Record { return base }
func (SinglePoint) Namespace() string                            { return "" }
func (SinglePoint) String() string                               { return "single run" }

// AttenuatorPoint is a point of the switching, pulse-shaping and
// attenuator sweep.
type AttenuatorPoint struct {
	Switching   bpm.Toggle
	Sausaging   bpm.Toggle
	Attenuators []float64
}

func (p AttenuatorPoint) Apply(base *metadata.Record) *metadata.Record {
	return base.WithAll(map[string]string{
		bpm.KeySwitching:   p.Switching.String(),
		bpm.KeySausaging:   p.Sausaging.String(),
		bpm.KeyAttenuators: bpm.FormatAttenuators(p.Attenuators),
	})
}

func (p AttenuatorPoint) Namespace() string {
	return "switching_" + p.Switching.String() + "_sausaging_" + p.Sausaging.String()
}

func (p AttenuatorPoint) String() string {
	return fmt.Sprintf("RFFE switching %s; DSP sausaging %s; RFFE attenuators = %s",
		p.Switching, p.Sausaging, bpm.FormatAttenuators(p.Attenuators))
}

// PhasePoint is a point of the deswitching phase sweep. Switching is
// always on because the deswitching phase has no effect otherwise.
type PhasePoint struct {
	Sausaging bpm.Toggle
	Phase     int
}

func (p PhasePoint) Apply(base *metadata.Record) *metadata.Record {
	return base.WithAll(map[string]string{
		bpm.KeySwitching:        bpm.On.String(),
		bpm.KeySausaging:        p.Sausaging.String(),
		bpm.KeyDeswitchingPhase: strconv.Itoa(p.Phase),
	})
}

func (p PhasePoint) Namespace() string {
	return "sausaging_" + p.Sausaging.String()
}

func (p PhasePoint) String() string {
	return fmt.Sprintf("Sausaging %s; Deswitching phase: %d", p.Sausaging, p.Phase)
}
