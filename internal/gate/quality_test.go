package gate

import (
	"math"
	"strings"
	"testing"

	"stepflow/internal/errors"
)

func TestEvaluatePassedDependsOnlyOnGatingMetrics(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   bool
	}{
		{
			name: "all metrics pass",
			scores: map[string]float64{
				MetricOverall:         85,
				MetricSecurity:        9.0,
				MetricMaintainability: 8.0,
				MetricComplexity:      3.0,
				MetricTestCoverage:    90,
				MetricPerformance:     8.0,
			},
			want: true,
		},
		{
			name: "advisory metrics fail but gating pass",
			scores: map[string]float64{
				MetricOverall:         85,
				MetricSecurity:        9.0,
				MetricMaintainability: 2.0,
				MetricComplexity:      9.0,
				MetricTestCoverage:    10,
				MetricPerformance:     1.0,
			},
			want: true,
		},
		{
			name: "overall below threshold fails the gate",
			scores: map[string]float64{
				MetricOverall:  50,
				MetricSecurity: 9.0,
			},
			want: false,
		},
		{
			name: "security below threshold fails the gate",
			scores: map[string]float64{
				MetricOverall:  85,
				MetricSecurity: 5.0,
			},
			want: false,
		},
		{
			name: "both gating metrics fail",
			scores: map[string]float64{
				MetricOverall:  50,
				MetricSecurity: 5.0,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(tt.scores, DefaultThresholds())
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Passed != tt.want {
				t.Errorf("Passed = %v, want %v (failures: %v, warnings: %v)",
					result.Passed, tt.want, result.Failures, result.Warnings)
			}
			if result.Passed != (result.OverallPassed && result.SecurityPassed) {
				t.Errorf("Passed = %v but overall=%v security=%v",
					result.Passed, result.OverallPassed, result.SecurityPassed)
			}
		})
	}
}

func TestEvaluateComplexityIsACeiling(t *testing.T) {
	base := map[string]float64{
		MetricOverall:  85,
		MetricSecurity: 9.0,
	}

	low := map[string]float64{MetricComplexity: 3.0}
	for k, v := range base {
		low[k] = v
	}
	result, err := Evaluate(low, DefaultThresholds())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.ComplexityPassed {
		t.Errorf("complexity 3.0 against ceiling 5.0 should pass")
	}

	high := map[string]float64{MetricComplexity: 6.0}
	for k, v := range base {
		high[k] = v
	}
	result, err = Evaluate(high, DefaultThresholds())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.ComplexityPassed {
		t.Errorf("complexity 6.0 against ceiling 5.0 should fail")
	}
	if !result.Passed {
		t.Errorf("complexity is advisory, gate should still pass")
	}
	if len(result.Warnings) == 0 {
		t.Errorf("complexity failure should produce a warning")
	}
}

func TestEvaluateMissingMetricsPass(t *testing.T) {
	result, err := Evaluate(map[string]float64{MetricOverall: 85, MetricSecurity: 9.0}, DefaultThresholds())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Passed {
		t.Errorf("gate should pass with only gating metrics present")
	}
	if !result.MaintainabilityPassed || !result.ComplexityPassed ||
		!result.TestCoveragePassed || !result.PerformancePassed {
		t.Errorf("absent metrics should report as passing")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("absent metrics should not warn, got %v", result.Warnings)
	}
}

func TestEvaluateRejectsNonFiniteScores(t *testing.T) {
	for name, value := range map[string]float64{
		"NaN":  math.NaN(),
		"+Inf": math.Inf(1),
		"-Inf": math.Inf(-1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Evaluate(map[string]float64{MetricSecurity: value}, DefaultThresholds())
			if err == nil {
				t.Fatalf("Evaluate() should reject %s", name)
			}
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error should be a ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestNormalizeMetricScaleHeuristic(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"already zero to ten", 8.5, 8.5},
		{"hundred scale divided", 85, 8.5},
		{"boundary ten stays", 10, 10},
		{"just above ten rescaled", 10.5, 1.05},
		{"negative clamps to zero", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMetric("m", tt.in)
			if err != nil {
				t.Fatalf("NormalizeMetric() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeMetric(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePercent(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"fractional scale multiplied", 8.5, 85},
		{"percent stays", 85, 85},
		{"boundary ten multiplied", 10, 100},
		{"above hundred clamps", 150, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePercent("m", tt.in)
			if err != nil {
				t.Fatalf("NormalizePercent() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizePercent(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestThresholdOverride(t *testing.T) {
	overridden := DefaultThresholds().Override(map[string]float64{
		KeyOverallMin:    90,
		KeyComplexityMax: 3,
		"unknown_key":    42,
	})

	if overridden.OverallMin != 90 {
		t.Errorf("OverallMin = %v, want 90", overridden.OverallMin)
	}
	if overridden.ComplexityMax != 3 {
		t.Errorf("ComplexityMax = %v, want 3", overridden.ComplexityMax)
	}
	if overridden.SecurityMin != DefaultThresholds().SecurityMin {
		t.Errorf("untouched threshold changed")
	}
}

func TestEvaluateFailureMessagesNameTheMetric(t *testing.T) {
	result, err := Evaluate(map[string]float64{
		MetricOverall:  50,
		MetricSecurity: 9.0,
	}, DefaultThresholds())
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("want 1 failure, got %v", result.Failures)
	}
	if !strings.Contains(result.Failures[0], MetricOverall) {
		t.Errorf("failure message %q should name the metric", result.Failures[0])
	}
}
