package analysis

import (
	"math"
	"sort"

	"finbuddy/internal/core"
)

// topCategoryLimit caps how many categories a snapshot highlights.
const topCategoryLimit = 5

// NewSpendingDelta is the sentinel for a category with spending in the
// current period but none in the previous one, rendered as +100%.
const NewSpendingDelta = 1.0

// Aggregation is the deterministic statistical core of a snapshot.
type Aggregation struct {
	TopCategories []core.CategoryTotal
	Deltas        []core.CategoryDelta
	TotalCurrent  core.Money
	TotalPrevious core.Money
}

// Aggregate groups both expense sets by category and produces exact totals,
// the top categories of the current period, and period-over-period deltas.
// Pure and deterministic; empty inputs yield empty outputs with zero totals.
func Aggregate(current, previous []core.Expense) Aggregation {
	curTotals, curOrder := totalsByCategory(current)
	prevTotals, _ := totalsByCategory(previous)

	// Top categories: descending by total, ties resolved by first-seen
	// input order (curOrder preserves it, SliceStable keeps it).
	top := make([]core.CategoryTotal, 0, len(curOrder))
	for _, cat := range curOrder {
		top = append(top, core.CategoryTotal{Category: cat, Total: core.Money{Cents: curTotals[cat]}})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Total.Cents > top[j].Total.Cents
	})
	if len(top) > topCategoryLimit {
		top = top[:topCategoryLimit]
	}

	// Deltas over the union of categories present in either period.
	// Walking core.Categories gives the enumeration-order tie-break.
	var deltas []core.CategoryDelta
	for _, cat := range core.Categories {
		cur, curOK := curTotals[cat]
		prev, prevOK := prevTotals[cat]
		if !curOK && !prevOK {
			continue
		}
		deltas = append(deltas, core.CategoryDelta{Category: cat, DeltaPct: deltaPct(cur, prev)})
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return math.Abs(deltas[i].DeltaPct) > math.Abs(deltas[j].DeltaPct)
	})

	return Aggregation{
		TopCategories: top,
		Deltas:        deltas,
		TotalCurrent:  core.Money{Cents: sumCents(curTotals)},
		TotalPrevious: core.Money{Cents: sumCents(prevTotals)},
	}
}

// deltaPct implements the delta rule: current/previous - 1 when previous is
// positive; zero when both periods are zero; the new-spending sentinel when
// only the current period has spending.
func deltaPct(cur, prev int64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return NewSpendingDelta
	}
	return float64(cur)/float64(prev) - 1.0
}

// totalsByCategory sums amounts per category in cents and records the order
// in which categories were first seen.
func totalsByCategory(expenses []core.Expense) (map[core.Category]int64, []core.Category) {
	totals := make(map[core.Category]int64, len(expenses))
	var order []core.Category
	for _, e := range expenses {
		cat := e.CategoryOrOther()
		if _, seen := totals[cat]; !seen {
			order = append(order, cat)
		}
		totals[cat] += e.Amount.Cents
	}
	return totals, order
}

func sumCents(totals map[core.Category]int64) int64 {
	var sum int64
	for _, cents := range totals {
		sum += cents
	}
	return sum
}
