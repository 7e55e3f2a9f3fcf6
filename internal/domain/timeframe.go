package domain

import (
	"fmt"
	"time"
)

// Timeframe is a trailing lookback window used by read queries and flow summaries.
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe90d Timeframe = "90d"
	Timeframe1y  Timeframe = "1y"
	TimeframeAll Timeframe = "all"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1h:  time.Hour,
	Timeframe1d:  24 * time.Hour,
	Timeframe24h: 24 * time.Hour,
	Timeframe7d:  7 * 24 * time.Hour,
	Timeframe30d: 30 * 24 * time.Hour,
	Timeframe90d: 90 * 24 * time.Hour,
	Timeframe1y:  365 * 24 * time.Hour,
	TimeframeAll: 0,
}

// ParseTimeframe validates a timeframe query value. Empty input yields def.
func ParseTimeframe(s string, def Timeframe) (Timeframe, error) {
	if s == "" {
		return def, nil
	}
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the window length. Zero means unbounded.
func (t Timeframe) Duration() time.Duration {
	return timeframeDurations[t]
}

// Contains reports whether a Unix ms timestamp falls strictly inside the window ending at now.
func (t Timeframe) Contains(ts int64, now time.Time) bool {
	d := t.Duration()
	if d == 0 {
		return true
	}
	return now.UnixMilli()-ts < d.Milliseconds()
}

// Timestamped is implemented by every history record.
type Timestamped interface {
	UnixMilli() int64
}

// Window returns the records inside tf, preserving order.
func Window[R Timestamped](records []R, tf Timeframe, now time.Time) []R {
	if tf.Duration() == 0 {
		return records
	}
	out := make([]R, 0, len(records))
	for _, r := range records {
		if tf.Contains(r.UnixMilli(), now) {
			out = append(out, r)
		}
	}
	return out
}
