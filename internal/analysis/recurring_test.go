package analysis

import (
	"reflect"
	"testing"
	"time"

	"finbuddy/internal/core"
)

func merchantExpense(merchant string, cents int64) core.Expense {
	return core.Expense{
		Title:    "x",
		Amount:   core.Money{Cents: cents},
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Merchant: merchant,
		Category: core.CategoryOther,
		Source:   core.SourceManual,
	}
}

func TestDetectRecurringMerchants(t *testing.T) {
	tests := []struct {
		name     string
		expenses []core.Expense
		want     []string
	}{
		{
			name: "similar amounts within tolerance",
			expenses: []core.Expense{
				merchantExpense("Netflix", 999),
				merchantExpense("Netflix", 1099), // within max(1.00, 5%) of 10.99
			},
			want: []string{"Netflix"},
		},
		{
			name: "wildly different amounts still count as repeat visits",
			expenses: []core.Expense{
				merchantExpense("Shop", 500),
				merchantExpense("Shop", 50000),
			},
			want: []string{"Shop"},
		},
		{
			name: "single transaction is not recurring",
			expenses: []core.Expense{
				merchantExpense("OneOff", 1500),
			},
			want: nil,
		},
		{
			name: "empty merchant ignored",
			expenses: []core.Expense{
				merchantExpense("", 999),
				merchantExpense("  ", 999),
			},
			want: nil,
		},
		{
			name: "similarity wins over count when a suspect exists",
			expenses: []core.Expense{
				merchantExpense("Gym", 2999),
				merchantExpense("Gym", 2999),
				merchantExpense("Cafe", 500),
				merchantExpense("Cafe", 9000),
			},
			want: []string{"Gym"},
		},
		{
			name: "result sorted alphabetically",
			expenses: []core.Expense{
				merchantExpense("Zeta", 1000),
				merchantExpense("Zeta", 1000),
				merchantExpense("Alpha", 2000),
				merchantExpense("Alpha", 2050),
			},
			want: []string{"Alpha", "Zeta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectRecurringMerchants(tt.expenses)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectRecurringMerchants() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectRecurringMerchantsToleranceScales(t *testing.T) {
	// 5% of 100.00 is 5.00, so 100.00 and 104.00 are similar.
	got := DetectRecurringMerchants([]core.Expense{
		merchantExpense("Rent Co", 10000),
		merchantExpense("Rent Co", 10400),
	})
	if !reflect.DeepEqual(got, []string{"Rent Co"}) {
		t.Errorf("got %v, want [Rent Co]", got)
	}
}
