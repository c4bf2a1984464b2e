package gate

import (
	"fmt"

	"stepflow/internal/remediation"
)

// Composite gate defaults.
const (
	// DefaultMaxCritical is the critical-issue count above which the
	// gate hard-fails.
	DefaultMaxCritical = 0

	// DefaultMaxHigh is the high-issue count above which the gate
	// soft-fails into remediation.
	DefaultMaxHigh = 5

	// DefaultRegressionTolerance is the fractional score drop versus
	// baseline that counts as a regression.
	DefaultRegressionTolerance = 0.05
)

// regressionMetrics are the scores compared against the baseline.
var regressionMetrics = []string{MetricOverall, MetricSecurity, MetricMaintainability}

// CompositeConfig tunes the issue-severity and regression layers.
type CompositeConfig struct {
	// MaxCritical is the critical-issue ceiling; exceeding it hard-fails.
	MaxCritical int `mapstructure:"max_critical"`

	// MaxHigh is the high-issue ceiling; exceeding it soft-fails.
	MaxHigh int `mapstructure:"max_high"`

	// RegressionTolerance is the fractional drop versus baseline that
	// triggers a soft fail (0.05 = 5%).
	RegressionTolerance float64 `mapstructure:"regression_tolerance"`
}

// DefaultCompositeConfig returns the default composite gate settings.
func DefaultCompositeConfig() CompositeConfig {
	return CompositeConfig{
		MaxCritical:         DefaultMaxCritical,
		MaxHigh:             DefaultMaxHigh,
		RegressionTolerance: DefaultRegressionTolerance,
	}
}

// VerificationResult is the outcome of an external verification tool
// (linter, type checker, security scanner). Any failed verification is
// a hard gate failure.
type VerificationResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// CompositeResult is the layered gate verdict.
//
// HardFail is terminal: the gate layer never retries it. SoftFail (and
// its alias Loopback) is eligible for the bounded remediation loop.
// Passed short-circuits across all three layers: no hard fail, no soft
// fail, and the score gate passed.
type CompositeResult struct {
	Passed   bool     `json:"passed"`
	HardFail bool     `json:"hard_fail"`
	SoftFail bool     `json:"soft_fail"`
	Loopback bool     `json:"loopback"`
	Reasons  []string `json:"reasons,omitempty"`

	// Quality is the score-gate layer's result, nil when no scores were
	// provided.
	Quality *QualityGateResult `json:"quality,omitempty"`
}

// CompositeEvaluator layers issue-severity and regression checks on top
// of the score gate.
type CompositeEvaluator struct {
	cfg        CompositeConfig
	thresholds QualityThresholds
}

// NewCompositeEvaluator creates a composite evaluator. Zero-value config
// fields fall back to defaults, except MaxCritical where zero is the
// intended default ceiling.
func NewCompositeEvaluator(cfg CompositeConfig, thresholds QualityThresholds) *CompositeEvaluator {
	if cfg.MaxHigh <= 0 {
		cfg.MaxHigh = DefaultMaxHigh
	}
	if cfg.RegressionTolerance <= 0 {
		cfg.RegressionTolerance = DefaultRegressionTolerance
	}
	return &CompositeEvaluator{cfg: cfg, thresholds: thresholds}
}

// Thresholds returns the score thresholds the evaluator checks against.
func (e *CompositeEvaluator) Thresholds() QualityThresholds {
	return e.thresholds
}

// Evaluate produces the layered verdict. All inputs are optional:
// nil scores skip the score gate, a nil manifest skips issue checks,
// nil baseline skips regression detection.
func (e *CompositeEvaluator) Evaluate(
	scores map[string]float64,
	issues *remediation.Manifest,
	verifications []VerificationResult,
	baseline map[string]float64,
) (*CompositeResult, error) {
	result := &CompositeResult{}

	qualityPassed := true
	if scores != nil {
		quality, err := Evaluate(scores, e.thresholds)
		if err != nil {
			return nil, err
		}
		result.Quality = quality
		qualityPassed = quality.Passed
		if !quality.Passed {
			result.Reasons = append(result.Reasons, quality.Failures...)
		}
	}

	// Hard-fail layer: critical issues and failed verifications are
	// terminal, never auto-retried here.
	if issues != nil {
		if critical := issues.CountCritical(); critical > e.cfg.MaxCritical {
			result.HardFail = true
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("%d critical issue(s) exceed ceiling of %d", critical, e.cfg.MaxCritical))
		}
	}
	for _, v := range verifications {
		if !v.Passed {
			result.HardFail = true
			reason := fmt.Sprintf("verification %q failed", v.Name)
			if v.Details != "" {
				reason += ": " + v.Details
			}
			result.Reasons = append(result.Reasons, reason)
		}
	}

	// Soft-fail layer: only consulted absent a hard fail.
	if !result.HardFail {
		if issues != nil {
			if high := issues.CountHigh(); high > e.cfg.MaxHigh {
				result.SoftFail = true
				result.Reasons = append(result.Reasons,
					fmt.Sprintf("%d high issue(s) exceed ceiling of %d", high, e.cfg.MaxHigh))
			}
		}
		if regressed, reasons := e.detectRegression(scores, baseline); regressed {
			result.SoftFail = true
			result.Reasons = append(result.Reasons, reasons...)
		}
	}

	result.Loopback = result.SoftFail
	result.Passed = !result.HardFail && !result.SoftFail && qualityPassed
	return result, nil
}

// detectRegression compares current overall/security/maintainability
// scores against the baseline. A drop of more than the configured
// tolerance on any of them is a regression. Both sides are normalized
// before comparison so mixed scales cannot fake a regression.
func (e *CompositeEvaluator) detectRegression(scores, baseline map[string]float64) (bool, []string) {
	if scores == nil || baseline == nil {
		return false, nil
	}

	var reasons []string
	for _, metric := range regressionMetrics {
		cur, curOK := scores[metric]
		base, baseOK := baseline[metric]
		if !curOK || !baseOK || base <= 0 {
			continue
		}

		curNorm, err := normalizeFor(metric, cur)
		if err != nil {
			continue
		}
		baseNorm, err := normalizeFor(metric, base)
		if err != nil || baseNorm <= 0 {
			continue
		}

		if curNorm < baseNorm*(1-e.cfg.RegressionTolerance) {
			drop := (baseNorm - curNorm) / baseNorm * 100
			reasons = append(reasons,
				fmt.Sprintf("%s regressed %.1f%% versus baseline (%.2f -> %.2f)", metric, drop, baseNorm, curNorm))
		}
	}
	return len(reasons) > 0, reasons
}

// normalizeFor applies the metric's scale rule.
func normalizeFor(metric string, v float64) (float64, error) {
	if metric == MetricOverall || metric == MetricTestCoverage {
		return NormalizePercent(metric, v)
	}
	return NormalizeMetric(metric, v)
}
