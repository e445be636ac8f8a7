package analysis

import (
	"fmt"
	"strings"
	"time"
)

// BuildNarrative renders the deterministic rule-based summary and insight
// strings for a snapshot. Each insight is appended only when its source
// data is non-empty. Never fails and performs no I/O.
func BuildNarrative(agg Aggregation, recurring []string, expenseCount int, periodStart, periodEnd time.Time) (summary string, insights []string) {
	summary = fmt.Sprintf("Spent %s across %d expenses between %s – %s.",
		agg.TotalCurrent, expenseCount, formatDate(periodStart), formatDate(periodEnd))

	if len(agg.TopCategories) > 0 {
		top := agg.TopCategories[0]
		insights = append(insights, fmt.Sprintf("Top category: %s (%s).",
			top.Category.DisplayName(), top.Total))
	}
	if len(agg.Deltas) > 0 {
		biggest := agg.Deltas[0]
		insights = append(insights, fmt.Sprintf("Biggest change vs prev: %s (%s).",
			biggest.Category.DisplayName(), FormatDeltaPct(biggest.DeltaPct)))
	}
	if len(recurring) > 0 {
		names := recurring
		if len(names) > 3 {
			names = names[:3]
		}
		insights = append(insights, "Recurring merchants: "+strings.Join(names, ", ")+".")
	}
	return summary, insights
}

// FormatDeltaPct renders a fractional delta as a signed whole percentage,
// e.g. 0.25 -> "+25%".
func FormatDeltaPct(delta float64) string {
	sign := ""
	if delta >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.0f%%", sign, delta*100)
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
