package logging

import (
	"math"
	"strings"
	"testing"
)

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"zero", 0.0, 2, "0.00"},
		{"positive", 3.14159, 2, "3.14"},
		{"negative", -16.5, 1, "-16.5"},
		{"large", 12345.6789, 2, "12345.68"},
		{"small_normal", 0.001, 3, "0.001"},
		{"very_small_rounds", 0.00001, 2, "0.00"},
		{"nan", math.NaN(), 2, MissingValue},
		{"positive_inf", math.Inf(1), 2, MissingValue},
		{"negative_inf", math.Inf(-1), 2, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetric(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetric(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricSigned(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"positive", 2.5, 1, "+2.5"},
		{"negative", -1.2, 1, "-1.2"},
		{"zero", 0.0, 1, "+0.0"},
		{"nan", math.NaN(), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricSigned(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricSigned(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricWithUnit(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		unit     string
		want     string
	}{
		{"with_unit", -16.0, 1, "LUFS", "-16.0 LUFS"},
		{"no_unit", 1234.5, 1, "", "1234.5"},
		{"nan_with_unit", math.NaN(), 1, "Hz", MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricWithUnit(tt.value, tt.decimals, tt.unit)
			if got != tt.want {
				t.Errorf("formatMetricWithUnit(%v, %d, %q) = %q, want %q", tt.value, tt.decimals, tt.unit, got, tt.want)
			}
		})
	}
}

func TestMetricTableString(t *testing.T) {
	t.Run("basic_three_column", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Integrated Loudness", []string{"-23.0", "-16.0", "+7.0"}, "LUFS", "")
		table.AddRow("True Peak", []string{"-3.5", "-1.2", "+2.3"}, "dBTP", "")

		output := table.String()

		// Verify headers present
		for _, header := range []string{"Before", "After", "Change"} {
			if !strings.Contains(output, header) {
				t.Errorf("Output should contain %q header", header)
			}
		}

		// Verify data present
		if !strings.Contains(output, "Integrated Loudness") {
			t.Error("Output should contain row label")
		}
		if !strings.Contains(output, "-16.0") {
			t.Error("Output should contain value")
		}
		if !strings.Contains(output, "LUFS") {
			t.Error("Output should contain unit")
		}
	})

	t.Run("with_interpretation", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("True Peak", []string{"-3.0", "-0.5", "+2.5"}, "dBTP", "little headroom")

		output := table.String()

		if !strings.Contains(output, "Interpretation") {
			t.Error("Output should contain 'Interpretation' header when rows have interpretations")
		}
		if !strings.Contains(output, "little headroom") {
			t.Error("Output should contain interpretation text")
		}
	})

	t.Run("missing_values", func(t *testing.T) {
		table := NewMetricTable()
		table.AddRow("Test Metric", []string{"-10.0", ""}, "dB", "") // Only 2 values for 3 columns

		output := table.String()

		// Missing values should show as "-"
		if !strings.Contains(output, " -  ") {
			t.Error("Missing values should display as dash")
		}
	})

	t.Run("empty_table", func(t *testing.T) {
		table := NewMetricTable()
		output := table.String()

		if output != "" {
			t.Errorf("Empty table should return empty string, got %q", output)
		}
	})

	t.Run("add_loudness_row", func(t *testing.T) {
		table := NewMetricTable()
		table.AddLoudnessRow("Integrated Loudness", -23.5, -16.0, "LUFS", "")

		row := table.Rows[0]
		want := []string{"-23.5", "-16.0", "+7.5"}
		for i, v := range want {
			if row.Values[i] != v {
				t.Errorf("Values[%d] = %q, want %q", i, row.Values[i], v)
			}
		}
	})

	t.Run("add_loudness_row_unmeasurable", func(t *testing.T) {
		tests := []struct {
			name          string
			before, after float64
			unit          string
			want          []string
		}{
			{"silent lufs", math.Inf(-1), math.Inf(-1), "LUFS", []string{"< -70", "< -70", MissingValue}},
			{"below gate", -80, -68, "LUFS", []string{"< -70", "-68.0", MissingValue}},
			{"silent peak", math.Inf(-1), -130, "dBTP", []string{"< -120", "< -120", MissingValue}},
			{"nan", math.NaN(), -3, "dBTP", []string{MissingValue, "-3.0", MissingValue}},
			{"peak", -7.3, -1.3, "dBTP", []string{"-7.3", "-1.3", "+6.0"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				table := NewMetricTable()
				table.AddLoudnessRow("Metric", tt.before, tt.after, tt.unit, "")
				got := table.Rows[0].Values
				for i := range tt.want {
					if got[i] != tt.want[i] {
						t.Errorf("AddLoudnessRow(%v, %v, %q) values = %q, want %q", tt.before, tt.after, tt.unit, got, tt.want)
						break
					}
				}
			})
		}
	})
}

func TestMetricTableAlignment(t *testing.T) {
	table := NewMetricTable()
	table.AddRow("Short", []string{"1", "2", "3"}, "", "")
	table.AddRow("Much Longer Label", []string{"100", "200", "300"}, "", "")

	output := table.String()
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")

	if len(lines) < 3 {
		t.Fatalf("Expected 3 lines (header + 2 data), got %d", len(lines))
	}

	// All data lines should have same position for first value column
	// (values are right-aligned, so the rightmost digit should align)
	// This is a basic check that formatting is consistent
	for i := 1; i < len(lines); i++ {
		if len(lines[i]) < 20 {
			t.Errorf("Line %d seems too short: %q", i, lines[i])
		}
	}
}

func TestIsDigitalSilence(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{"negative_infinity", math.Inf(-1), true},
		{"below_threshold", -150.0, true},
		{"at_threshold", -120.0, true},
		{"just_above_threshold", -119.9, false},
		{"normal_value", -60.0, false},
		{"positive_infinity", math.Inf(1), false}, // +Inf is not digital silence
		{"nan", math.NaN(), false},                // NaN is handled separately
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isDigitalSilence(tt.value)
			if got != tt.want {
				t.Errorf("isDigitalSilence(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatMetricDB(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"normal_value", -50.0, 1, "-50.0"},
		{"digital_silence_inf", math.Inf(-1), 1, "< -120"},
		{"digital_silence_threshold", -120.0, 1, "< -120"},
		{"digital_silence_below", -150.0, 1, "< -120"},
		{"just_above_threshold", -119.9, 1, "-119.9"},
		{"nan", math.NaN(), 1, MissingValue},
		{"positive_inf", math.Inf(1), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricDB(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricDB(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricLUFS(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"normal_value", -23.0, 1, "-23.0"},
		{"at_floor", -70.0, 1, "-70.0"},
		{"below_floor", -163.0, 1, "< -70"},
		{"way_below_floor", -171.9, 1, "< -70"},
		{"silence", math.Inf(-1), 1, "< -70"},
		{"nan", math.NaN(), 1, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetricLUFS(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetricLUFS(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}
