// Package gate evaluates quality gates for workflow steps.
//
// Two layers are provided. [Evaluate] checks normalized scores against
// [QualityThresholds] and produces a [QualityGateResult] whose aggregate
// verdict depends only on the overall and security metrics. The
// [CompositeEvaluator] layers issue-severity and regression checks on
// top, producing hard-fail / soft-fail / loopback verdicts that drive
// the auto-progression manager.
package gate

// Score map keys produced by scorer collaborators.
const (
	MetricOverall         = "overall_score"
	MetricSecurity        = "security_score"
	MetricMaintainability = "maintainability_score"
	MetricComplexity      = "complexity_score"
	MetricTestCoverage    = "test_coverage"
	MetricPerformance     = "performance_score"
)

// QualityThresholds holds the six gate floors and ceilings. Overall and
// test coverage are on a 0-100 scale; the remaining metrics are 0-10.
// Complexity is a ceiling (lower is better); everything else is a floor.
type QualityThresholds struct {
	OverallMin         float64 `json:"overall_min" mapstructure:"overall_min"`
	SecurityMin        float64 `json:"security_min" mapstructure:"security_min"`
	MaintainabilityMin float64 `json:"maintainability_min" mapstructure:"maintainability_min"`
	ComplexityMax      float64 `json:"complexity_max" mapstructure:"complexity_max"`
	TestCoverageMin    float64 `json:"test_coverage_min" mapstructure:"test_coverage_min"`
	PerformanceMin     float64 `json:"performance_min" mapstructure:"performance_min"`
}

// DefaultThresholds returns the workflow-wide default gate thresholds.
func DefaultThresholds() QualityThresholds {
	return QualityThresholds{
		OverallMin:         70.0,
		SecurityMin:        8.5,
		MaintainabilityMin: 7.0,
		ComplexityMax:      5.0,
		TestCoverageMin:    80.0,
		PerformanceMin:     7.0,
	}
}

// Threshold override keys accepted from gate configuration.
const (
	KeyOverallMin         = "overall_min"
	KeySecurityMin        = "security_min"
	KeyMaintainabilityMin = "maintainability_min"
	KeyComplexityMax      = "complexity_max"
	KeyTestCoverageMin    = "test_coverage_min"
	KeyPerformanceMin     = "performance_min"
)

// Override returns a copy of the thresholds with the given keys
// replaced. Unknown keys are ignored.
func (t QualityThresholds) Override(overrides map[string]float64) QualityThresholds {
	out := t
	for key, value := range overrides {
		switch key {
		case KeyOverallMin:
			out.OverallMin = value
		case KeySecurityMin:
			out.SecurityMin = value
		case KeyMaintainabilityMin:
			out.MaintainabilityMin = value
		case KeyComplexityMax:
			out.ComplexityMax = value
		case KeyTestCoverageMin:
			out.TestCoverageMin = value
		case KeyPerformanceMin:
			out.PerformanceMin = value
		}
	}
	return out
}
