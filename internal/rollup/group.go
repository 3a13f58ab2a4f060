// ABOUTME: Calendar grouping helpers (UTC day/ISO week/month) used by the rollup engine
package rollup

import (
	"sort"
	"strings"
	"time"

	"github.com/harper/sekha/internal/domain"
)

func dayKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekKey returns the Monday (UTC) that starts t's ISO week, as YYYY-MM-DD.
func weekKey(t time.Time) string {
	day := dayKey(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset).Format("2006-01-02")
}

func monthKey(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func groupByDay(msgs []*domain.Message) map[time.Time][]*domain.Message {
	out := make(map[time.Time][]*domain.Message)
	for _, m := range msgs {
		k := dayKey(m.Timestamp)
		out[k] = append(out[k], m)
	}
	for k := range out {
		sort.Slice(out[k], func(i, j int) bool { return out[k][i].InsertionID < out[k][j].InsertionID })
	}
	return out
}

func groupSummariesByWeek(summaries []*domain.HierarchicalSummary) map[string][]*domain.HierarchicalSummary {
	out := make(map[string][]*domain.HierarchicalSummary)
	for _, s := range summaries {
		k := weekKey(s.RangeStart)
		out[k] = append(out[k], s)
	}
	for k := range out {
		sort.Slice(out[k], func(i, j int) bool { return out[k][i].RangeStart.Before(out[k][j].RangeStart) })
	}
	return out
}

func groupSummariesByMonth(summaries []*domain.HierarchicalSummary) map[string][]*domain.HierarchicalSummary {
	out := make(map[string][]*domain.HierarchicalSummary)
	for _, s := range summaries {
		k := monthKey(s.RangeStart)
		out[k] = append(out[k], s)
	}
	for k := range out {
		sort.Slice(out[k], func(i, j int) bool { return out[k][i].RangeStart.Before(out[k][j].RangeStart) })
	}
	return out
}

func weekBounds(weekStartISO string) (time.Time, time.Time) {
	start, _ := time.Parse("2006-01-02", weekStartISO)
	start = start.UTC()
	return start, start.AddDate(0, 0, 7)
}

func monthBounds(monthISO string) (time.Time, time.Time) {
	start, _ := time.Parse("2006-01", monthISO)
	start = start.UTC()
	return start, start.AddDate(0, 1, 0)
}

func filterByRange(msgs []*domain.Message, start, end time.Time) []*domain.Message {
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Timestamp.Before(start) && m.Timestamp.Before(end) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InsertionID < out[j].InsertionID })
	return out
}

func transcriptOf(msgs []*domain.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func joinSummaries(summaries []*domain.HierarchicalSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		b.WriteString(s.SummaryText)
		b.WriteString("\n")
	}
	return b.String()
}
