package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/voiceline-ai/voiceline/internal/platform"
)

// Overview is the derived analytics summary for a call set.
type Overview struct {
	PeriodDays             int            `json:"period_days"`
	TotalCalls             int            `json:"total_calls"`
	SuccessfulCalls        int            `json:"successful_calls"`
	FailedCalls            int            `json:"failed_calls"`
	SuccessRate            float64        `json:"success_rate"`
	AverageDurationSeconds float64        `json:"average_duration_seconds"`
	TotalDurationSeconds   float64        `json:"total_duration_seconds"`
	TotalCost              float64        `json:"total_cost"`
	AverageCost            float64        `json:"average_cost"`
	SentimentDistribution  map[string]int `json:"sentiment_distribution"`
}

// CallsPoint is one day in the call-volume chart series.
type CallsPoint struct {
	Name    string `json:"name"`
	Calls   int    `json:"calls"`
	Success int    `json:"success"`
}

// DurationPoint is one day in the average-duration chart series.
type DurationPoint struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// CallSummary is the display-safe projection of a call for recent-call lists.
type CallSummary struct {
	CallID          string  `json:"call_id"`
	AgentID         string  `json:"agent_id"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       int64   `json:"timestamp"`
	EndReason       string  `json:"end_reason,omitempty"`
	Sentiment       string  `json:"sentiment,omitempty"`
	Summary         string  `json:"summary,omitempty"`
}

// FilterCutoff drops every call whose effective timestamp is before the fixed
// cutoff. The query window already excludes them, but the remote time filter
// is not trusted to be exact, so upstream data is filtered again here.
func FilterCutoff(calls []platform.Call) []platform.Call {
	out := make([]platform.Call, 0, len(calls))
	for _, c := range calls {
		if c.Timestamp() >= CutoffTimestampMs {
			out = append(out, c)
		}
	}
	return out
}

// Summarize reduces a call set into overview metrics. All ratios are
// zero-guarded: an empty set produces zeros, never NaN.
//
// Every call not in status "ended" counts as failed, including "ongoing".
// That matches the upstream dashboard's reading of the numbers; revisit if
// in-flight calls should be excluded from both counts instead.
func Summarize(calls []platform.Call, periodDays int) Overview {
	total := len(calls)
	successful := 0
	var durationMs int64
	var cost float64
	sentiments := map[string]int{
		platform.SentimentPositive: 0,
		platform.SentimentNeutral:  0,
		platform.SentimentNegative: 0,
		platform.SentimentUnknown:  0,
	}
	for _, c := range calls {
		if c.CallStatus == platform.CallStatusEnded {
			successful++
		}
		durationMs += c.DurationMs
		cost += c.CombinedCost()
		sentiments[c.Sentiment()]++
	}

	ov := Overview{
		PeriodDays:            periodDays,
		TotalCalls:            total,
		SuccessfulCalls:       successful,
		FailedCalls:           total - successful,
		TotalDurationSeconds:  float64(durationMs) / 1000,
		TotalCost:             cost,
		SentimentDistribution: sentiments,
	}
	if total > 0 {
		ov.SuccessRate = float64(successful) / float64(total) * 100
		ov.AverageDurationSeconds = ov.TotalDurationSeconds / float64(total)
		ov.AverageCost = cost / float64(total)
	}
	return ov
}

// BucketByDay groups calls into a fixed 7-point weekday series covering the
// trailing 7 calendar days ending today, oldest first. The series shape is a
// display policy independent of how many days the query window spanned.
func BucketByDay(calls []platform.Call, now time.Time) ([]CallsPoint, []DurationPoint) {
	type bucket struct {
		calls    int
		success  int
		duration float64
	}
	daily := map[string]*bucket{}
	for _, c := range calls {
		ts := c.Timestamp()
		if ts == 0 {
			continue
		}
		day := time.UnixMilli(ts).In(now.Location()).Format("Mon")
		b := daily[day]
		if b == nil {
			b = &bucket{}
			daily[day] = b
		}
		b.calls++
		if c.CallStatus == platform.CallStatusEnded {
			b.success++
		}
		b.duration += float64(c.DurationMs) / 1000
	}

	callsSeries := make([]CallsPoint, 0, 7)
	durationSeries := make([]DurationPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		name := now.AddDate(0, 0, -i).Format("Mon")
		b := daily[name]
		if b == nil {
			b = &bucket{}
		}
		callsSeries = append(callsSeries, CallsPoint{Name: name, Calls: b.calls, Success: b.success})
		avg := 0.0
		if b.calls > 0 {
			avg = b.duration / float64(b.calls)
		}
		durationSeries = append(durationSeries, DurationPoint{Name: name, Duration: math.Round(avg*10) / 10})
	}
	return callsSeries, durationSeries
}

// RecentCalls sorts the full filtered set by start timestamp descending and
// truncates to limit only after sorting, projecting each call down to the
// display subset.
func RecentCalls(calls []platform.Call, limit int) []CallSummary {
	sorted := make([]platform.Call, len(calls))
	copy(sorted, calls)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp() > sorted[j].Timestamp()
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]CallSummary, 0, len(sorted))
	for _, c := range sorted {
		s := CallSummary{
			CallID:          c.CallID,
			AgentID:         c.AgentID,
			Status:          c.CallStatus,
			DurationSeconds: math.Round(float64(c.DurationMs)/100) / 10,
			Timestamp:       c.StartTimestamp,
			EndReason:       c.DisconnectionReason,
		}
		if c.CallAnalysis != nil {
			s.Sentiment = c.CallAnalysis.UserSentiment
			s.Summary = c.CallAnalysis.CallSummary
		}
		out = append(out, s)
	}
	return out
}
