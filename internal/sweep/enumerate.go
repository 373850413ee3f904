package sweep

import (
	"fmt"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
)

// PowerBudget bounds the carrier power at each RF front-end stage.
type PowerBudget struct {
	// MaxPower is the strongest carrier expected at the input, in dBm.
	MaxPower float64
	// Gains and Thresholds are indexed by stage, in declared order.
	Gains      []float64
	Thresholds []float64
}

// Validate checks that the budget covers stages attenuators.
func (b *PowerBudget) Validate(stages int) error {
	if len(b.Gains) < stages || len(b.Thresholds) < stages {
		return fmt.Errorf("power budget covers %d gains and %d thresholds, need %d stages",
			len(b.Gains), len(b.Thresholds), stages)
	}
	return nil
}

// Admissible reports whether the carrier stays at or below every stage
// threshold: maxpower + sum(gain[0..i]) - sum(att[0..i]) <= threshold[i].
func (b *PowerBudget) Admissible(atts []float64) bool {
	level := b.MaxPower
	for i, att := range atts {
		level += b.Gains[i] - att
		if level > b.Thresholds[i] {
			return false
		}
	}
	return true
}

// Plan describes an attenuator sweep.
type Plan struct {
	// Stages holds the candidate values of each attenuator stage.
	Stages [][]float64
	// Budget prunes combinations. A nil budget admits everything.
	Budget *PowerBudget
}

// UniformStages gives every one of n stages the same candidate values.
func UniformStages(values []float64, n int) [][]float64 {
	stages := make([][]float64, n)
	for i := range stages {
		stages[i] = values
	}
	return stages
}

// Enumerate yields the sweep points in a fixed order: switching off then
// on, pulse-shaping off then on with the "on" branch skipped while
// switching is off, then every admissible attenuator combination with the
// last stage varying fastest.
func Enumerate(plan Plan) ([]Point, error) {
	if len(plan.Stages) == 0 {
		return nil, fmt.Errorf("sweep plan has no attenuator stages")
	}
	if plan.Budget != nil {
		if err := plan.Budget.Validate(len(plan.Stages)); err != nil {
			return nil, err
		}
	}
	combos, err := Product(plan.Stages, MaxCombos)
	if err != nil {
		return nil, err
	}

	var admissible [][]float64
	for _, c := range combos {
		if plan.Budget == nil || plan.Budget.Admissible(c) {
			admissible = append(admissible, c)
		}
	}

	var points []Point
	for _, switching := range []bpm.Toggle{bpm.Off, bpm.On} {
		for _, sausaging := range []bpm.Toggle{bpm.Off, bpm.On} {
			if switching == bpm.Off && sausaging == bpm.On {
				continue
			}
			for _, c := range admissible {
				points = append(points, AttenuatorPoint{Switching: switching, Sausaging: sausaging, Attenuators: c})
			}
		}
	}
	return points, nil
}

// EnumeratePhases yields the deswitching phase sweep: pulse-shaping off
// then on, each over every phase in order.
func EnumeratePhases(phases []int) ([]Point, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("phase sweep has no phases")
	}
	points := make([]Point, 0, 2*len(phases))
	for _, sausaging := range []bpm.Toggle{bpm.Off, bpm.On} {
		for _, phase := range phases {
			points = append(points, PhasePoint{Sausaging: sausaging, Phase: phase})
		}
	}
	return points, nil
}
