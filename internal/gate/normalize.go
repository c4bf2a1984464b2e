package gate

import (
	"math"

	"stepflow/internal/errors"
)

// Scale bounds for normalized scores.
const (
	metricScaleMax  = 10.0
	percentScaleMax = 100.0
)

// checkFinite rejects NaN and infinities before any clamping. Silently
// clamping a NaN would turn a scorer bug into a passing gate.
func checkFinite(metric string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewValidationError("score is not a finite number").
			WithField(metric).WithValue(v)
	}
	return nil
}

// clamp bounds v into [0, max].
func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeMetric converts an individual metric score onto the 0-10
// scale. Values above 10 are assumed to already be on a 0-100 scale and
// are divided down. Non-finite values are rejected; finite out-of-range
// values are clamped.
func NormalizeMetric(metric string, v float64) (float64, error) {
	if err := checkFinite(metric, v); err != nil {
		return 0, err
	}
	if v > metricScaleMax {
		v = v / 10.0
	}
	return clamp(v, metricScaleMax), nil
}

// NormalizePercent converts an overall or coverage score onto the 0-100
// scale. Values of 10 or below are assumed to be on a 0-10 scale and
// are multiplied up. Non-finite values are rejected; finite
// out-of-range values are clamped.
func NormalizePercent(metric string, v float64) (float64, error) {
	if err := checkFinite(metric, v); err != nil {
		return 0, err
	}
	if v <= metricScaleMax {
		v = v * 10.0
	}
	return clamp(v, percentScaleMax), nil
}
