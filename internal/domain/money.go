package domain

import "math"

// Round2 snaps a currency amount to two decimal places. Every stored money
// field goes through this so chained arithmetic does not accumulate float
// noise across invoice rewrites.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
