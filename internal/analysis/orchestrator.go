package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finbuddy/internal/core"
)

// AutoWindowDays is the fixed window length of automatic runs.
const AutoWindowDays = 7

const (
	// OutcomeRuleBased: AI was disabled; the deterministic result persisted.
	OutcomeRuleBased Outcome = "rule_based"
	// OutcomeAI: the AI insight generator succeeded.
	OutcomeAI Outcome = "ai"
	// OutcomeFallback: AI was enabled but failed; the deterministic result
	// persisted instead.
	OutcomeFallback Outcome = "fallback"
)

type (
	// Outcome tags which path produced the persisted snapshot, so the
	// presentation layer can surface a fallback banner without a hidden
	// event bus.
	Outcome string

	// RunResult is what one pipeline run produced.
	RunResult struct {
		Snapshot core.Snapshot
		Outcome  Outcome
	}

	// Orchestrator sequences the analysis pipeline: window computation,
	// aggregation, recurring detection, the AI-or-rule-based choice, and
	// snapshot persistence.
	Orchestrator struct {
		expenses   ExpenseSource
		snapshots  SnapshotStore
		generator  InsightGenerator
		useAI      func() bool
		onFallback func()
		exporter   SnapshotExporter
		now        func() time.Time
	}

	// OrchestratorConfig carries the orchestrator's collaborators. UseAI is
	// called fresh at the start of each run. OnFallback, Exporter, and Now
	// are optional.
	OrchestratorConfig struct {
		Expenses   ExpenseSource
		Snapshots  SnapshotStore
		Generator  InsightGenerator
		UseAI      func() bool
		OnFallback func()
		Exporter   SnapshotExporter
		Now        func() time.Time
	}
)

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		expenses:   cfg.Expenses,
		snapshots:  cfg.Snapshots,
		generator:  cfg.Generator,
		useAI:      cfg.UseAI,
		onFallback: cfg.OnFallback,
		exporter:   cfg.Exporter,
		now:        cfg.Now,
	}
	if o.useAI == nil {
		o.useAI = func() bool { return false }
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// RunAuto executes the pipeline over the fixed 7-day window and deletes all
// existing snapshots first, so at most one snapshot exists under this path.
// Callers must serialize auto runs (the worker queue does).
func (o *Orchestrator) RunAuto(ctx context.Context) (RunResult, error) {
	if err := o.snapshots.DeleteAllSnapshots(ctx); err != nil {
		return RunResult{}, fmt.Errorf("delete existing snapshots: %w", err)
	}
	return o.run(ctx, AutoWindowDays)
}

// RunManual executes the pipeline over an explicit window length without
// touching prior snapshots; history accumulates.
func (o *Orchestrator) RunManual(ctx context.Context, windowDays int) (RunResult, error) {
	return o.run(ctx, windowDays)
}

func (o *Orchestrator) run(ctx context.Context, windowDays int) (RunResult, error) {
	now := o.now()
	window, err := ComputeWindow(now, windowDays)
	if err != nil {
		return RunResult{}, err
	}

	all, err := o.expenses.ListExpenses(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list expenses: %w", err)
	}

	var current, previous []core.Expense
	for _, e := range all {
		switch {
		case window.ContainsCurrent(e.Date):
			current = append(current, e)
		case window.ContainsPrevious(e.Date):
			previous = append(previous, e)
		}
	}

	agg := Aggregate(current, previous)
	recurring := DetectRecurringMerchants(current)
	summary, insights := BuildNarrative(agg, recurring, len(current), window.Start, window.End)

	snapshot := core.Snapshot{
		ID:                 uuid.New(),
		CreatedAt:          now,
		PeriodStart:        window.Start,
		PeriodEnd:          window.End,
		TopCategories:      agg.TopCategories,
		Deltas:             agg.Deltas,
		RecurringMerchants: recurring,
		Insights:           insights,
		Summary:            summary,
	}
	outcome := OutcomeRuleBased

	if o.useAI() && o.generator != nil {
		aiResult, genErr := o.generator.GenerateInsights(ctx, core.AnalysisContext{
			TotalSpending:      agg.TotalCurrent,
			TopCategories:      agg.TopCategories,
			Deltas:             agg.Deltas,
			RecurringMerchants: recurring,
			PeriodStart:        window.Start,
			PeriodEnd:          window.End,
			PreviousSpending:   agg.TotalPrevious,
		})
		if genErr != nil {
			slog.WarnContext(ctx, "AI insight generation failed, using rule-based result",
				"error", genErr,
				"window_days", windowDays)
			if o.onFallback != nil {
				o.onFallback()
			}
			outcome = OutcomeFallback
		} else {
			// Category, delta, and merchant data always come from the local
			// aggregation; the AI contributes only narrative text.
			snapshot.Summary = aiResult.Summary
			snapshot.Insights = append(append([]string(nil), aiResult.Insights...), aiResult.Recommendations...)
			outcome = OutcomeAI
		}
	}

	if err := o.snapshots.InsertSnapshot(ctx, snapshot); err != nil {
		return RunResult{}, fmt.Errorf("insert snapshot: %w", err)
	}

	if o.exporter != nil {
		if err := o.exporter.ExportSnapshot(ctx, snapshot); err != nil {
			slog.WarnContext(ctx, "Snapshot export failed", "error", err, "snapshot_id", snapshot.ID)
		}
	}

	slog.InfoContext(ctx, "Analysis snapshot persisted",
		"snapshot_id", snapshot.ID,
		"outcome", outcome,
		"window_days", windowDays,
		"current_expenses", len(current),
		"previous_expenses", len(previous),
		"total_cents", agg.TotalCurrent.Cents)

	return RunResult{Snapshot: snapshot, Outcome: outcome}, nil
}
