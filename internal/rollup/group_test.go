package rollup

import (
	"testing"
	"time"

	"github.com/harper/sekha/internal/domain"
)

func TestGroupByDaySplitsAcrossCalendarDays(t *testing.T) {
	d1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	msgs := []*domain.Message{
		{ID: "a", Timestamp: d1, InsertionID: 0},
		{ID: "b", Timestamp: d1.Add(time.Hour), InsertionID: 1},
		{ID: "c", Timestamp: d2, InsertionID: 2},
	}

	groups := groupByDay(msgs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 day groups, got %d", len(groups))
	}
	if len(groups[dayKey(d1)]) != 2 {
		t.Fatalf("expected 2 messages on day 1")
	}
	if len(groups[dayKey(d2)]) != 1 {
		t.Fatalf("expected 1 message on day 2")
	}
}

func TestGroupSummariesByWeekGroupsSameISOWeek(t *testing.T) {
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	wed := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	nextMon := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	summaries := []*domain.HierarchicalSummary{
		{ID: "1", RangeStart: mon},
		{ID: "2", RangeStart: wed},
		{ID: "3", RangeStart: nextMon},
	}

	groups := groupSummariesByWeek(summaries)
	if len(groups) != 2 {
		t.Fatalf("expected 2 week groups, got %d", len(groups))
	}
}

func TestWeekBoundsRoundTrip(t *testing.T) {
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	k := weekKey(mon)
	start, end := weekBounds(k)
	if !start.Equal(mon) {
		t.Fatalf("expected week start %v, got %v", mon, start)
	}
	if end.Sub(start) != 7*24*time.Hour {
		t.Fatalf("expected 7-day week span, got %v", end.Sub(start))
	}
}

func TestFilterByRangeIsHalfOpen(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	msgs := []*domain.Message{
		{ID: "before", Timestamp: start.Add(-time.Second), InsertionID: 0},
		{ID: "in", Timestamp: start.Add(time.Hour), InsertionID: 1},
		{ID: "at_end", Timestamp: end, InsertionID: 2},
	}

	out := filterByRange(msgs, start, end)
	if len(out) != 1 || out[0].ID != "in" {
		t.Fatalf("expected only the in-range message, got %+v", out)
	}
}
