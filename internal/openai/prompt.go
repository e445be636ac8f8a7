package openai

import (
	"fmt"
	"strings"

	"finbuddy/internal/analysis"
	"finbuddy/internal/core"
)

const systemPrompt = `You are a personal finance advisor. You receive a spending summary and respond with JSON only, matching this schema exactly:
{
  "summary": "one or two sentences describing the period's spending",
  "insights": ["short observation", ...],
  "recommendations": ["short actionable suggestion", ...],
  "tone": "positive" | "neutral" | "cautionary"
}
Keep insights and recommendations concrete and grounded in the numbers provided. Do not invent figures.`

// strictSchemaHint is appended to the user prompt on a retry after the model
// returned something that failed schema validation.
const strictSchemaHint = "Return valid JSON that matches the schema exactly. No extra keys."

// buildAnalysisPrompt renders the aggregation as the plain-text briefing the
// model sees. All numbers come pre-computed; the model only narrates.
func buildAnalysisPrompt(ac core.AnalysisContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TOTAL SPENDING: %s (%s – %s)\n",
		ac.TotalSpending,
		ac.PeriodStart.Format("Jan 2, 2006"),
		ac.PeriodEnd.Format("Jan 2, 2006"))

	b.WriteString("\nTOP SPENDING CATEGORIES:\n")
	if len(ac.TopCategories) == 0 {
		b.WriteString("None\n")
	}
	for _, ct := range ac.TopCategories {
		fmt.Fprintf(&b, "• %s: %s\n", ct.Category.DisplayName(), ct.Total)
	}

	b.WriteString("\nCHANGES VS PREVIOUS PERIOD:\n")
	if len(ac.Deltas) == 0 {
		b.WriteString("None\n")
	}
	for _, d := range ac.Deltas {
		fmt.Fprintf(&b, "• %s: %s\n", d.Category.DisplayName(), analysis.FormatDeltaPct(d.DeltaPct))
	}
	if ac.PreviousSpending.Cents > 0 {
		diff := core.Money{Cents: ac.TotalSpending.Cents - ac.PreviousSpending.Cents}
		pct := float64(diff.Cents) / float64(ac.PreviousSpending.Cents)
		fmt.Fprintf(&b, "Overall change: %s (%s)\n", signedMoney(diff), analysis.FormatDeltaPct(pct))
	}

	b.WriteString("\nRECURRING MERCHANTS:\n")
	if len(ac.RecurringMerchants) == 0 {
		b.WriteString("None detected\n")
	} else {
		b.WriteString(strings.Join(ac.RecurringMerchants, ", "))
		b.WriteString("\n")
	}

	return b.String()
}

func signedMoney(m core.Money) string {
	if m.Cents >= 0 {
		return "+" + m.String()
	}
	return m.String()
}
