package localuser

import "time"

// IsWithinThresholdPeriod reports whether t falls inside the trailing window
// that pattern describes, measured back from the reference time now. Pattern
// is a time.ParseDuration expression such as "24h" or "2h30m".
func IsWithinThresholdPeriod(t time.Time, pattern string, now time.Time) (bool, error) {
	window, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}

	return t.After(now.Add(-window)), nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod.
func IsOutsideThresholdPeriod(t time.Time, pattern string, now time.Time) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, pattern, now)
	if err != nil {
		return false, err
	}

	return !within, nil
}
