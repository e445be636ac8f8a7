package core

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	TonePositive   Tone = "positive"
	ToneNeutral    Tone = "neutral"
	ToneCautionary Tone = "cautionary"
)

type (
	// Tone classifies the overall sentiment of an AI analysis result.
	Tone string

	// CategoryTotal is the exact spend for one category within a period.
	CategoryTotal struct {
		Category Category
		Total    Money
	}

	// CategoryDelta is the period-over-period change for one category.
	// DeltaPct is fractional: 0.25 means +25%. A category with no previous
	// spending but current spending carries the new-spending sentinel +1.0.
	CategoryDelta struct {
		Category Category
		DeltaPct float64
	}

	// AnalysisContext is the ephemeral payload handed to the AI insight
	// generator. It is never persisted.
	AnalysisContext struct {
		TotalSpending      Money
		TopCategories      []CategoryTotal
		Deltas             []CategoryDelta
		RecurringMerchants []string
		PeriodStart        time.Time
		PeriodEnd          time.Time
		PreviousSpending   Money
	}

	// AnalysisResult is the schema the AI endpoint must return.
	AnalysisResult struct {
		Summary         string   `json:"summary"`
		Insights        []string `json:"insights"`
		Recommendations []string `json:"recommendations"`
		Tone            Tone     `json:"tone"`
	}

	// Snapshot is one persisted analysis result for a date window.
	// Snapshots are immutable once written; they are only created,
	// listed or deleted.
	Snapshot struct {
		ID          uuid.UUID
		CreatedAt   time.Time
		PeriodStart time.Time
		PeriodEnd   time.Time

		TopCategories      []CategoryTotal
		Deltas             []CategoryDelta
		RecurringMerchants []string
		Insights           []string
		Summary            string
	}
)

func (t Tone) Valid() bool {
	return t == TonePositive || t == ToneNeutral || t == ToneCautionary
}

// Validate checks that a decoded AI result carries every required field.
func (r AnalysisResult) Validate() error {
	if r.Summary == "" {
		return errors.New("analysis result: missing summary")
	}
	if r.Insights == nil {
		return errors.New("analysis result: missing insights")
	}
	if r.Recommendations == nil {
		return errors.New("analysis result: missing recommendations")
	}
	if !r.Tone.Valid() {
		return errors.New("analysis result: invalid tone")
	}
	return nil
}
