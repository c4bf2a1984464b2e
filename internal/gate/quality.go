package gate

import "fmt"

// comparison is the direction a metric is checked against its threshold.
// Modeling the direction explicitly keeps the inverted complexity
// comparator from being hand-rolled (and inverted wrongly) at call sites.
type comparison int

const (
	// atLeast passes when score >= threshold.
	atLeast comparison = iota
	// atMost passes when score <= threshold. Used for complexity, where
	// lower is better.
	atMost
)

func (c comparison) passes(score, threshold float64) bool {
	if c == atMost {
		return score <= threshold
	}
	return score >= threshold
}

func (c comparison) symbol() string {
	if c == atMost {
		return "<="
	}
	return ">="
}

// metricSpec describes how one metric is normalized and compared.
type metricSpec struct {
	key       string
	direction comparison
	percent   bool // normalized to 0-100 rather than 0-10
	gating    bool // failure blocks the gate rather than warning
	threshold func(QualityThresholds) float64
}

// metricSpecs is the full metric table. Only overall and security are
// gating; the rest are advisory.
var metricSpecs = []metricSpec{
	{MetricOverall, atLeast, true, true, func(t QualityThresholds) float64 { return t.OverallMin }},
	{MetricSecurity, atLeast, false, true, func(t QualityThresholds) float64 { return t.SecurityMin }},
	{MetricMaintainability, atLeast, false, false, func(t QualityThresholds) float64 { return t.MaintainabilityMin }},
	{MetricComplexity, atMost, false, false, func(t QualityThresholds) float64 { return t.ComplexityMax }},
	{MetricTestCoverage, atLeast, true, false, func(t QualityThresholds) float64 { return t.TestCoverageMin }},
	{MetricPerformance, atLeast, false, false, func(t QualityThresholds) float64 { return t.PerformanceMin }},
}

// QualityGateResult reports per-metric outcomes and the aggregate
// verdict. Passed is true iff overall AND security pass; all other
// metrics populate Warnings only.
type QualityGateResult struct {
	OverallPassed         bool `json:"overall_passed"`
	SecurityPassed        bool `json:"security_passed"`
	MaintainabilityPassed bool `json:"maintainability_passed"`
	ComplexityPassed      bool `json:"complexity_passed"`
	TestCoveragePassed    bool `json:"test_coverage_passed"`
	PerformancePassed     bool `json:"performance_passed"`

	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// NormalizedScores holds the post-normalization values that were
	// actually compared, for audit and event payloads.
	NormalizedScores map[string]float64 `json:"normalized_scores,omitempty"`
}

// Evaluate normalizes the given scores and checks them against the
// thresholds. Metrics absent from the score map are treated as passing
// (no data, nothing to gate on). A non-finite score fails the whole
// evaluation with a ValidationError rather than being clamped away.
func Evaluate(scores map[string]float64, thresholds QualityThresholds) (*QualityGateResult, error) {
	result := &QualityGateResult{
		OverallPassed:         true,
		SecurityPassed:        true,
		MaintainabilityPassed: true,
		ComplexityPassed:      true,
		TestCoveragePassed:    true,
		PerformancePassed:     true,
		NormalizedScores:      make(map[string]float64),
	}

	for _, spec := range metricSpecs {
		raw, ok := scores[spec.key]
		if !ok {
			continue
		}

		var normalized float64
		var err error
		if spec.percent {
			normalized, err = NormalizePercent(spec.key, raw)
		} else {
			normalized, err = NormalizeMetric(spec.key, raw)
		}
		if err != nil {
			return nil, err
		}
		result.NormalizedScores[spec.key] = normalized

		threshold := spec.threshold(thresholds)
		passed := spec.direction.passes(normalized, threshold)
		result.setMetric(spec.key, passed)

		if passed {
			continue
		}
		msg := fmt.Sprintf("%s %.2f failed threshold (%s %.2f)",
			spec.key, normalized, spec.direction.symbol(), threshold)
		if spec.gating {
			result.Failures = append(result.Failures, msg)
		} else {
			result.Warnings = append(result.Warnings, msg)
		}
	}

	result.Passed = result.OverallPassed && result.SecurityPassed
	return result, nil
}

// setMetric records a per-metric verdict by key.
func (r *QualityGateResult) setMetric(key string, passed bool) {
	switch key {
	case MetricOverall:
		r.OverallPassed = passed
	case MetricSecurity:
		r.SecurityPassed = passed
	case MetricMaintainability:
		r.MaintainabilityPassed = passed
	case MetricComplexity:
		r.ComplexityPassed = passed
	case MetricTestCoverage:
		r.TestCoveragePassed = passed
	case MetricPerformance:
		r.PerformancePassed = passed
	}
}
