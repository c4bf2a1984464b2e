package remediation

import "fmt"

// Default bounds for the remediation loop.
const (
	// DefaultMaxRetries is the remediation attempt ceiling.
	DefaultMaxRetries = 3

	// highIssueRetryThreshold is the high-severity count above which
	// another remediation pass is warranted.
	highIssueRetryThreshold = 5

	// highRegressionTolerance is the allowed growth in high-severity
	// count between passes before the regression guard trips. A small
	// band avoids false alarms from scorer noise.
	highRegressionTolerance = 2
)

// Loop tracks remediation attempts for one gated step and decides
// whether another corrective pass is warranted. It is a closed loop:
// the caller re-runs the affected steps, re-evaluates issues, records
// the attempt, and asks again — never recursing past the retry ceiling.
type Loop struct {
	maxRetries        int
	protectRegression bool
	retryCount        int
}

// NewLoop creates a remediation loop with the given retry ceiling.
// A non-positive maxRetries uses DefaultMaxRetries.
func NewLoop(maxRetries int, protectRegression bool) *Loop {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Loop{
		maxRetries:        maxRetries,
		protectRegression: protectRegression,
	}
}

// RetryCount returns the number of remediation attempts recorded so far.
func (l *Loop) RetryCount() int {
	return l.retryCount
}

// MaxRetries returns the attempt ceiling.
func (l *Loop) MaxRetries() int {
	return l.maxRetries
}

// RecordAttempt increments the attempt counter. Call once per
// remediation pass before re-evaluating.
func (l *Loop) RecordAttempt() {
	l.retryCount++
}

// ShouldRetry decides whether another remediation pass is warranted.
// previous may be nil on the first pass.
//
// Decision order:
//  1. retry budget exhausted → never retry
//  2. regression guard (when enabled and previous exists): more
//     criticals than before, or high count grown past the tolerance
//     band → stop rather than chase a worsening trend
//  3. critical issues remain → retry
//  4. high-issue count above threshold → retry
//  5. otherwise → stop, quality is acceptable
func (l *Loop) ShouldRetry(current, previous *Manifest) (bool, string) {
	if l.retryCount >= l.maxRetries {
		return false, fmt.Sprintf("retry budget exhausted (%d/%d)", l.retryCount, l.maxRetries)
	}

	if current == nil {
		return false, "no issues to remediate"
	}

	curCritical := current.CountCritical()
	curHigh := current.CountHigh()

	if l.protectRegression && previous != nil {
		prevCritical := previous.CountCritical()
		prevHigh := previous.CountHigh()

		if curCritical > prevCritical {
			return false, fmt.Sprintf("regression: critical issues rose from %d to %d", prevCritical, curCritical)
		}
		if curHigh > prevHigh+highRegressionTolerance {
			return false, fmt.Sprintf("regression: high issues rose from %d to %d (tolerance +%d)",
				prevHigh, curHigh, highRegressionTolerance)
		}
	}

	if curCritical > 0 {
		return true, fmt.Sprintf("%d critical issue(s) remain", curCritical)
	}
	if curHigh > highIssueRetryThreshold {
		return true, fmt.Sprintf("%d high issue(s) exceed threshold of %d", curHigh, highIssueRetryThreshold)
	}

	return false, "remaining issues below remediation thresholds"
}
