package analytics

import "time"

// CutoffDate is the fixed historical instant before which no call data is
// ever surfaced, regardless of query parameters. Hard product policy, not
// configurable per request.
var CutoffDate = time.Date(2025, time.December, 13, 0, 0, 0, 0, time.UTC)

// CutoffTimestampMs is CutoffDate in epoch milliseconds.
var CutoffTimestampMs = CutoffDate.UnixMilli()

// Window is a half-open query window in epoch milliseconds.
type Window struct {
	StartMs int64
	EndMs   int64
}

// Clock computes cutoff-clamped query windows. The zero value uses the real
// wall clock; tests inject Now.
type Clock struct {
	Now func() time.Time
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Time returns the clock's current instant.
func (c Clock) Time() time.Time { return c.now() }

// Window returns the effective query window for a trailing number of days:
// end = now, start = max(now - days, cutoff). Start never exceeds end, so a
// cutoff in the future yields an empty window rather than an inverted one.
func (c Clock) Window(days int) Window {
	if days < 0 {
		days = 0
	}
	now := c.now()
	end := now.UnixMilli()
	start := now.AddDate(0, 0, -days).UnixMilli()
	if start < CutoffTimestampMs {
		start = CutoffTimestampMs
	}
	if start > end {
		start = end
	}
	return Window{StartMs: start, EndMs: end}
}
