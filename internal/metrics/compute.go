// Package metrics computes derived analytics for tracked entities.
// Every function is pure: inputs are history records ordered oldest first
// and an explicit evaluation time.
package metrics

import (
	"math"
	"time"

	"sei-tracker/internal/domain"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// computeMean calculates arithmetic mean of values.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// clampScore bounds a score to [0, 100].
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// finite replaces NaN and infinities with zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// countWithin counts records whose timestamp falls in (now-window, now].
func countWithin[R domain.Timestamped](records []R, window time.Duration, now time.Time) int {
	cutoff := now.Add(-window).UnixMilli()
	n := 0
	for _, r := range records {
		if r.UnixMilli() > cutoff {
			n++
		}
	}
	return n
}

// countBetween counts records whose timestamp falls in (now-from, now-to].
func countBetween[R domain.Timestamped](records []R, from, to time.Duration, now time.Time) int {
	lower := now.Add(-from).UnixMilli()
	upper := now.Add(-to).UnixMilli()
	n := 0
	for _, r := range records {
		ts := r.UnixMilli()
		if ts > lower && ts <= upper {
			n++
		}
	}
	return n
}
