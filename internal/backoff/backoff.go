// Package backoff provides the bounded exponential delay used by the
// background refresh scheduler. The lazy refresh path never retries and
// never comes through here.
package backoff

import "time"

// Exponential returns min doubled attempt times, clamped to [min, max].
// Attempt 0 yields min.
func Exponential(attempt int, min, max time.Duration) time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}

	if max < min {
		max = min
	}

	delay := min
	for ; attempt > 0; attempt-- {
		if delay > max/2 {
			return max
		}

		delay <<= 1
	}

	return delay
}
