package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SourceManual   Source = "manual"
	SourceImported Source = "imported"
)

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategoryBills         Category = "bills"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryEducation     Category = "education"
	CategoryRent          Category = "rent"
	CategoryOther         Category = "other"
)

type (
	// Source records how an expense entered the system.
	Source string

	// Category is the fixed spending taxonomy. The zero value means
	// "not categorized"; aggregation attributes it to CategoryOther.
	Category string

	Expense struct {
		ID        uuid.UUID
		Title     string
		Amount    Money
		Date      time.Time
		Merchant  string   // optional
		Category  Category // optional, zero means unset
		Source    Source
		Notes     string
		CreatedAt time.Time

		// Import helpers
		ImportBatchID     uuid.UUID // uuid.Nil unless created by a CSV import
		CategoryUncertain bool      // import row carried a label we could not map
	}
)

// Categories lists every valid category in enumeration order. The order is
// load-bearing: delta tie-breaks follow it.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryBills,
	CategoryEntertainment,
	CategoryHealth,
	CategoryEducation,
	CategoryRent,
	CategoryOther,
}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidSource   = errors.New("invalid source")
)

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable category label.
func (c Category) DisplayName() string {
	if c == "" {
		return "Uncategorized"
	}
	return strings.ToUpper(string(c[0])) + string(c[1:])
}

// categoryAliases maps common free-form labels (CSV imports, user input) onto
// the fixed taxonomy.
var categoryAliases = map[string]Category{
	"dining": CategoryFood, "groceries": CategoryFood, "restaurant": CategoryFood,
	"restaurants": CategoryFood,
	"travel": CategoryTransport, "commute": CategoryTransport, "uber": CategoryTransport,
	"lyft": CategoryTransport, "taxi": CategoryTransport, "fuel": CategoryTransport,
	"gas": CategoryTransport,
	"retail": CategoryShopping, "amazon": CategoryShopping,
	"utilities": CategoryBills, "mortgage": CategoryBills, "phone": CategoryBills,
	"electricity": CategoryBills, "water": CategoryBills,
	"movies": CategoryEntertainment, "music": CategoryEntertainment, "games": CategoryEntertainment,
	"healthcare": CategoryHealth, "medical": CategoryHealth, "pharmacy": CategoryHealth,
	"fitness": CategoryHealth, "gym": CategoryHealth,
	"tuition": CategoryEducation, "courses": CategoryEducation, "books": CategoryEducation,
	"misc": CategoryOther, "miscellaneous": CategoryOther,
}

// ParseCategory maps an arbitrary string to a Category. It returns the zero
// Category when the label is empty or unknown.
func ParseCategory(raw string) Category {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if c := Category(s); c.Valid() {
		return c
	}
	if c, ok := categoryAliases[s]; ok {
		return c
	}
	return ""
}

func (s Source) Valid() bool {
	return s == SourceManual || s == SourceImported
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if e.Date.IsZero() {
		return ErrZeroDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Category != "" && !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if !e.Source.Valid() {
		return ErrInvalidSource
	}
	return nil
}

// CategoryOrOther resolves the category used for aggregation: expenses
// without a category count toward CategoryOther.
func (e Expense) CategoryOrOther() Category {
	if e.Category == "" {
		return CategoryOther
	}
	return e.Category
}
