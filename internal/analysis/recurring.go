package analysis

import (
	"math"
	"sort"
	"strings"

	"finbuddy/internal/core"
)

// DetectRecurringMerchants identifies merchants in the current period that
// look like subscriptions or repeat charges. A merchant qualifies when any
// two adjacent amounts in its sorted charge list differ by no more than
// max(1.0, 5% of the larger amount). When similarity flags nothing, any
// merchant with two or more charges in the period qualifies instead.
//
// The returned names are unique and alphabetically sorted. Expenses without
// a merchant are ignored.
func DetectRecurringMerchants(current []core.Expense) []string {
	amounts := make(map[string][]float64)
	for _, e := range current {
		m := strings.TrimSpace(e.Merchant)
		if m == "" {
			continue
		}
		amounts[m] = append(amounts[m], e.Amount.Units())
	}

	var suspects []string
	for merchant, charges := range amounts {
		sort.Float64s(charges)
		if hasSimilarPair(charges) {
			suspects = append(suspects, merchant)
		}
	}

	if len(suspects) == 0 {
		for merchant, charges := range amounts {
			if len(charges) >= 2 {
				suspects = append(suspects, merchant)
			}
		}
	}

	sort.Strings(suspects)
	return suspects
}

// hasSimilarPair expects charges sorted ascending.
func hasSimilarPair(charges []float64) bool {
	for i := 1; i < len(charges); i++ {
		a, b := charges[i-1], charges[i]
		tolerance := math.Max(1.0, 0.05*b)
		if b-a <= tolerance {
			return true
		}
	}
	return false
}
