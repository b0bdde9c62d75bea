package request

import (
	"time"
)

// Backoff strategies. Deployments of this tool historically ran a fixed
// pause between retries, later a pause scaled by attempt number; exponential
// is available for constrained endpoints.
const (
	StrategyFixed       = "fixed"
	StrategyLinear      = "linear"
	StrategyExponential = "exponential"
)

// delayFor returns the pause before retry number attempt (0-based: the
// delay after the first failed attempt is delayFor(..., 0)).
func delayFor(strategy string, base, max time.Duration, attempt int) time.Duration {
	var d time.Duration
	switch strategy {
	case StrategyLinear:
		d = base * time.Duration(attempt+1)
	case StrategyExponential:
		d = base << uint(attempt)
	default: // fixed
		d = base
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}
