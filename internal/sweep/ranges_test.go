package sweep

import (
	"reflect"
	"testing"
)

func TestParseRangeSpec(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  RangeSpec
		expectErr bool
	}{
		{"valid_range", "0:30:7", RangeSpec{Min: 0, Max: 30, Step: 7}, false},
		{"fractional", "0:31.5:0.5", RangeSpec{Min: 0, Max: 31.5, Step: 0.5}, false},
		{"with_spaces", " 0 : 30 : 5 ", RangeSpec{Min: 0, Max: 30, Step: 5}, false},
		{"missing_parts", "0:30", RangeSpec{}, true},
		{"too_many_parts", "0:30:5:1", RangeSpec{}, true},
		{"invalid_min", "abc:30:5", RangeSpec{}, true},
		{"invalid_max", "0:abc:5", RangeSpec{}, true},
		{"invalid_step", "0:30:abc", RangeSpec{}, true},
		{"zero_step", "0:30:0", RangeSpec{}, true},
		{"negative_step", "0:30:-5", RangeSpec{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseRangeSpec(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if result != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, result)
			}
		})
	}
}

func TestParseIntRangeSpec(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  IntRangeSpec
		expectErr bool
	}{
		{"phase_default", "20:59:1", IntRangeSpec{Min: 20, Max: 59, Step: 1}, false},
		{"negative_values", "-10:10:5", IntRangeSpec{Min: -10, Max: 10, Step: 5}, false},
		{"float_value", "1.5:10:2", IntRangeSpec{}, true},
		{"missing_parts", "1:10", IntRangeSpec{}, true},
		{"zero_step", "1:10:0", IntRangeSpec{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseIntRangeSpec(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if result != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, result)
			}
			if got := result.String(); got != tc.input {
				t.Errorf("String() = %q, want %q", got, tc.input)
			}
		})
	}
}

func TestGenerateRange(t *testing.T) {
	testCases := []struct {
		name     string
		min      float64
		max      float64
		step     float64
		expected []float64
	}{
		{"rffe_v1", 0, 30, 7, []float64{0, 7, 14, 21, 28}},
		{"rffe_v2", 0, 30, 5, []float64{0, 5, 10, 15, 20, 25, 30}},
		{"tenths", 0, 0.5, 0.1, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}},
		{"single", 3, 3, 1, []float64{3}},
		{"min_above_max", 5, 1, 1, nil},
		{"zero_step", 0, 1, 0, nil},
		{"too_many", 0, 1e9, 1, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := GenerateRange(tc.min, tc.max, tc.step)
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestGenerateIntRange(t *testing.T) {
	if got := GenerateIntRange(20, 24, 2); !reflect.DeepEqual(got, []int{20, 22, 24}) {
		t.Errorf("GenerateIntRange(20,24,2) = %v", got)
	}
	if got := GenerateIntRange(5, 1, 1); got != nil {
		t.Errorf("expected nil for min > max, got %v", got)
	}
	if got := (IntRangeSpec{Min: 20, Max: 59, Step: 1}).Values(); len(got) != 40 {
		t.Errorf("expected 40 phases, got %d", len(got))
	}
}

func TestParseParamList(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  []float64
		expectErr bool
	}{
		{"range", "0:14:7", []float64{0, 7, 14}, false},
		{"list", "0, 3.5, 10", []float64{0, 3.5, 10}, false},
		{"empty", "", nil, false},
		{"bad_list", "0,x", nil, true},
		{"bad_range", "0:x:1", nil, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseParamList(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestProduct(t *testing.T) {
	got, err := Product([][]float64{{0, 1}, {10, 20, 30}}, 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := [][]float64{{0, 10}, {0, 20}, {0, 30}, {1, 10}, {1, 20}, {1, 30}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if _, err := Product([][]float64{{1, 2, 3}, {1, 2, 3}}, 8); err == nil {
		t.Error("expected limit error")
	}
	if _, err := Product([][]float64{{1}, {}}, 8); err == nil {
		t.Error("expected empty axis error")
	}
	if got, err := Product(nil, 8); got != nil || err != nil {
		t.Errorf("Product(nil) = %v, %v", got, err)
	}
}
