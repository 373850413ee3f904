// Package sweep enumerates calibration sweep points and runs the
// acquisition pipeline for each of them.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxValues caps a single generated axis.
const maxValues = 10000

// MaxCombos caps the number of attenuator combinations considered before
// power-budget pruning.
const MaxCombos = 100000

// RangeSpec defines a floating-point range such as "0:30:7".
type RangeSpec struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

// IntRangeSpec defines an integer range such as "20:59:1".
type IntRangeSpec struct {
	Min  int `json:"min" yaml:"min"`
	Max  int `json:"max" yaml:"max"`
	Step int `json:"step" yaml:"step"`
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	var vals [3]float64
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return RangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %g", vals[2])
	}
	return RangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

// ParseIntRangeSpec parses a "min:max:step" string into an IntRangeSpec.
func ParseIntRangeSpec(s string) (IntRangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return IntRangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	var vals [3]int
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return IntRangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}
	if vals[2] <= 0 {
		return IntRangeSpec{}, fmt.Errorf("step must be positive, got %d", vals[2])
	}
	return IntRangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

func (r RangeSpec) String() string {
	return fmt.Sprintf("%g:%g:%g", r.Min, r.Max, r.Step)
}

func (r IntRangeSpec) String() string {
	return fmt.Sprintf("%d:%d:%d", r.Min, r.Max, r.Step)
}

// Values expands the range, inclusive of Max when it falls on a step.
func (r RangeSpec) Values() []float64 {
	return GenerateRange(r.Min, r.Max, r.Step)
}

// Values expands the range, inclusive of Max when it falls on a step.
func (r IntRangeSpec) Values() []int {
	return GenerateIntRange(r.Min, r.Max, r.Step)
}

// GenerateRange returns min, min+step, ... up to max. It returns nil for an
// empty or oversized range.
func GenerateRange(min, max, step float64) []float64 {
	if step <= 0 || min > max {
		return nil
	}
	expectedCount := int((max-min)/step+1e-9) + 1
	if expectedCount > maxValues || expectedCount < 0 {
		return nil
	}

	result := make([]float64, 0, expectedCount)
	for i := 0; i < expectedCount; i++ {
		// Round to avoid floating point accumulation errors.
		v := math.Round((min+float64(i)*step)*1000) / 1000
		if v > max {
			break
		}
		result = append(result, v)
	}
	return result
}

// GenerateIntRange returns min, min+step, ... up to max. It returns nil for
// an empty or oversized range.
func GenerateIntRange(min, max, step int) []int {
	if step <= 0 || min > max {
		return nil
	}
	expectedCount := (max-min)/step + 1
	if expectedCount > maxValues || expectedCount < 0 {
		return nil
	}

	result := make([]int, 0, expectedCount)
	for v := min; v <= max; v += step {
		result = append(result, v)
	}
	return result
}

// ParseCSVFloat64s parses a comma-separated list of float64 values.
// Returns nil, nil for empty input strings.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseParamList parses either a "min:max:step" range or a comma-separated
// list of values.
func ParseParamList(s string) ([]float64, error) {
	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		return spec.Values(), nil
	}
	return ParseCSVFloat64s(s)
}

// Product returns the cartesian product of axes with the last axis varying
// fastest. It fails when the product would exceed limit.
func Product(axes [][]float64, limit int) ([][]float64, error) {
	if len(axes) == 0 {
		return nil, nil
	}

	total := int64(1)
	for i, v := range axes {
		if len(v) == 0 {
			return nil, fmt.Errorf("axis %d has no values", i+1)
		}
		total *= int64(len(v))
		if total > int64(limit) || total < 0 {
			return nil, fmt.Errorf("combinations would exceed safe limit of %d", limit)
		}
	}

	result := make([][]float64, total)
	for i := range result {
		result[i] = make([]float64, len(axes))
	}

	repeat := int64(1)
	for dim := len(axes) - 1; dim >= 0; dim-- {
		dimValues := axes[dim]
		cycle := int64(len(dimValues))
		for i := int64(0); i < total; i++ {
			result[i][dim] = dimValues[(i/repeat)%cycle]
		}
		repeat *= cycle
	}
	return result, nil
}
