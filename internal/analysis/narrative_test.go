package analysis

import (
	"strings"
	"testing"
	"time"

	"finbuddy/internal/core"
)

func TestBuildNarrativeSummary(t *testing.T) {
	agg := Aggregate([]core.Expense{
		expense(5230, core.CategoryFood),
		expense(1200, core.CategoryTransport),
	}, nil)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)

	summary, insights := BuildNarrative(agg, nil, 2, start, end)

	want := "Spent $64.30 across 2 expenses between Mar 1, 2026 – Mar 7, 2026."
	if summary != want {
		t.Errorf("summary = %q, want %q", summary, want)
	}
	if len(insights) == 0 {
		t.Fatal("expected at least one insight")
	}
	if !strings.Contains(insights[0], "Food") || !strings.Contains(insights[0], "$52.30") {
		t.Errorf("top-category insight = %q", insights[0])
	}
}

func TestBuildNarrativeRecurring(t *testing.T) {
	agg := Aggregate([]core.Expense{expense(999, core.CategoryEntertainment)}, nil)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	_, insights := BuildNarrative(agg, []string{"Netflix", "Spotify"}, 1, start, end)

	var found bool
	for _, in := range insights {
		if strings.Contains(in, "Netflix, Spotify") {
			found = true
		}
	}
	if !found {
		t.Errorf("no recurring-merchant insight in %v", insights)
	}
}

func TestBuildNarrativeEmptyPeriod(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	summary, insights := BuildNarrative(Aggregate(nil, nil), nil, 0, start, end)

	if !strings.HasPrefix(summary, "Spent $0.00 across 0 expenses") {
		t.Errorf("summary = %q", summary)
	}
	if len(insights) != 0 {
		t.Errorf("insights = %v, want none", insights)
	}
}

func TestFormatDeltaPct(t *testing.T) {
	tests := []struct {
		delta float64
		want  string
	}{
		{0.25, "+25%"},
		{-0.5, "-50%"},
		{0, "+0%"},
		{1.0, "+100%"},
	}
	for _, tt := range tests {
		if got := FormatDeltaPct(tt.delta); got != tt.want {
			t.Errorf("FormatDeltaPct(%v) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}
