package analytics

import (
	"testing"
	"time"

	"github.com/voiceline-ai/voiceline/internal/platform"
)

func endedCall(id string, ts int64, durationMs int64) platform.Call {
	return platform.Call{
		CallID:         id,
		CallStatus:     platform.CallStatusEnded,
		StartTimestamp: ts,
		DurationMs:     durationMs,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	ov := Summarize(nil, 7)
	if ov.TotalCalls != 0 || ov.SuccessRate != 0 || ov.AverageDurationSeconds != 0 || ov.AverageCost != 0 {
		t.Fatalf("expected zeroed overview, got %+v", ov)
	}
	sum := 0
	for _, n := range ov.SentimentDistribution {
		sum += n
	}
	if sum != 0 {
		t.Fatalf("expected empty sentiment distribution, got %+v", ov.SentimentDistribution)
	}
}

func TestSummarizeBasicMetrics(t *testing.T) {
	ts := CutoffTimestampMs + 1000
	calls := []platform.Call{
		endedCall("c1", ts, 1000),
		endedCall("c2", ts, 2000),
		endedCall("c3", ts, 3000),
	}
	ov := Summarize(calls, 7)
	if ov.SuccessRate != 100 {
		t.Fatalf("expected success rate 100, got %v", ov.SuccessRate)
	}
	if ov.AverageDurationSeconds != 2.0 {
		t.Fatalf("expected average duration 2.0, got %v", ov.AverageDurationSeconds)
	}
	if ov.TotalDurationSeconds != 6.0 {
		t.Fatalf("expected total duration 6.0, got %v", ov.TotalDurationSeconds)
	}
	if ov.FailedCalls != 0 {
		t.Fatalf("expected 0 failed, got %d", ov.FailedCalls)
	}
}

func TestSummarizeNonEndedCountsAsFailed(t *testing.T) {
	ts := CutoffTimestampMs + 1000
	calls := []platform.Call{
		endedCall("c1", ts, 1000),
		{CallID: "c2", CallStatus: platform.CallStatusOngoing, StartTimestamp: ts},
		{CallID: "c3", CallStatus: platform.CallStatusError, StartTimestamp: ts},
	}
	ov := Summarize(calls, 7)
	if ov.SuccessfulCalls != 1 || ov.FailedCalls != 2 {
		t.Fatalf("expected 1 successful / 2 failed, got %d/%d", ov.SuccessfulCalls, ov.FailedCalls)
	}
}

func TestSentimentDistributionComplete(t *testing.T) {
	ts := CutoffTimestampMs + 1
	calls := []platform.Call{
		{CallID: "c1", StartTimestamp: ts, CallAnalysis: &platform.CallAnalysis{UserSentiment: "positive"}},
		{CallID: "c2", StartTimestamp: ts, CallAnalysis: &platform.CallAnalysis{UserSentiment: "Negative"}},
		{CallID: "c3", StartTimestamp: ts, CallAnalysis: &platform.CallAnalysis{UserSentiment: "confused"}},
		{CallID: "c4", StartTimestamp: ts},
	}
	ov := Summarize(calls, 7)
	sum := 0
	for _, n := range ov.SentimentDistribution {
		sum += n
	}
	if sum != ov.TotalCalls {
		t.Fatalf("sentiment sum %d != total %d", sum, ov.TotalCalls)
	}
	if ov.SentimentDistribution[platform.SentimentUnknown] != 2 {
		t.Fatalf("expected 2 unknown, got %+v", ov.SentimentDistribution)
	}
	if ov.SentimentDistribution[platform.SentimentNegative] != 1 {
		t.Fatalf("expected cased sentiment normalized, got %+v", ov.SentimentDistribution)
	}
}

func TestFilterCutoffDropsPreCutoffCalls(t *testing.T) {
	calls := []platform.Call{
		{CallID: "old", StartTimestamp: CutoffTimestampMs - 1},
		{CallID: "boundary", StartTimestamp: CutoffTimestampMs},
		{CallID: "created-only", CreatedTimestamp: CutoffTimestampMs + 500},
	}
	got := FilterCutoff(calls)
	if len(got) != 2 {
		t.Fatalf("expected 2 calls after filter, got %d", len(got))
	}
	for _, c := range got {
		if c.CallID == "old" {
			t.Fatal("pre-cutoff call survived the filter")
		}
	}
}

func TestBucketByDaySingleDay(t *testing.T) {
	now := CutoffDate.AddDate(0, 0, 20)
	today := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.UTC)
	calls := []platform.Call{
		endedCall("c1", today.UnixMilli(), 60000),
		endedCall("c2", today.UnixMilli(), 120000),
	}

	callsSeries, durationSeries := BucketByDay(calls, now)
	if len(callsSeries) != 7 || len(durationSeries) != 7 {
		t.Fatalf("expected 7-point series, got %d/%d", len(callsSeries), len(durationSeries))
	}
	if callsSeries[6].Name != now.Format("Mon") {
		t.Fatalf("expected last point to be today (%s), got %s", now.Format("Mon"), callsSeries[6].Name)
	}

	nonZero := 0
	for i, p := range callsSeries {
		if p.Calls > 0 {
			nonZero++
			if p.Calls != 2 || p.Success != 2 {
				t.Fatalf("unexpected bucket %+v", p)
			}
			if durationSeries[i].Duration != 90.0 {
				t.Fatalf("expected avg duration 90.0, got %v", durationSeries[i].Duration)
			}
		}
	}
	if nonZero != 1 {
		t.Fatalf("expected exactly one non-zero bucket, got %d", nonZero)
	}
}

func TestBucketByDayChronologicalOrder(t *testing.T) {
	now := CutoffDate.AddDate(0, 0, 20)
	callsSeries, _ := BucketByDay(nil, now)
	for i, p := range callsSeries {
		want := now.AddDate(0, 0, i-6).Format("Mon")
		if p.Name != want {
			t.Fatalf("point %d: expected %s, got %s", i, want, p.Name)
		}
	}
}

func TestRecentCallsSortsBeforeTruncating(t *testing.T) {
	base := CutoffTimestampMs + 1000
	calls := []platform.Call{
		endedCall("oldest", base, 1000),
		endedCall("newest", base+2000, 1000),
		endedCall("middle", base+1000, 1000),
	}
	got := RecentCalls(calls, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].CallID != "newest" || got[1].CallID != "middle" {
		t.Fatalf("unexpected order: %s, %s", got[0].CallID, got[1].CallID)
	}
}

func TestRecentCallsProjection(t *testing.T) {
	calls := []platform.Call{{
		CallID:              "c1",
		AgentID:             "a1",
		CallStatus:          platform.CallStatusEnded,
		StartTimestamp:      CutoffTimestampMs + 1,
		DurationMs:          4550,
		DisconnectionReason: "user_hangup",
		CallAnalysis:        &platform.CallAnalysis{UserSentiment: "positive", CallSummary: "ok"},
	}}
	got := RecentCalls(calls, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(got))
	}
	s := got[0]
	if s.DurationSeconds != 4.6 {
		t.Fatalf("expected rounded duration 4.6, got %v", s.DurationSeconds)
	}
	if s.Sentiment != "positive" || s.Summary != "ok" || s.EndReason != "user_hangup" {
		t.Fatalf("unexpected projection: %+v", s)
	}
}
