package auth

import "time"

// IsWithinThresholdPeriod reports whether t happened less than d before now
func IsWithinThresholdPeriod(now, t time.Time, d time.Duration) bool {
	return now.Sub(t) < d
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(now, t time.Time, d time.Duration) bool {
	return !IsWithinThresholdPeriod(now, t, d)
}
