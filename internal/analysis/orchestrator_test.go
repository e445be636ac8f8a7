package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"finbuddy/internal/core"
)

type fakeExpenseSource struct {
	expenses []core.Expense
	err      error
}

func (f *fakeExpenseSource) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return f.expenses, f.err
}

type fakeSnapshotStore struct {
	snapshots []core.Snapshot
	insertErr error
	deleteErr error
}

func (f *fakeSnapshotStore) InsertSnapshot(ctx context.Context, s core.Snapshot) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeSnapshotStore) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	return f.snapshots, nil
}

func (f *fakeSnapshotStore) DeleteAllSnapshots(ctx context.Context) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.snapshots = nil
	return nil
}

type fakeGenerator struct {
	result core.AnalysisResult
	err    error
	calls  int
	last   core.AnalysisContext
}

func (f *fakeGenerator) GenerateInsights(ctx context.Context, ac core.AnalysisContext) (core.AnalysisResult, error) {
	f.calls++
	f.last = ac
	return f.result, f.err
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func datedExpense(cents int64, cat core.Category, daysAgo int) core.Expense {
	return core.Expense{
		Title:    "x",
		Amount:   core.Money{Cents: cents},
		Date:     testNow.AddDate(0, 0, -daysAgo),
		Category: cat,
		Source:   core.SourceManual,
	}
}

func newTestOrchestrator(src ExpenseSource, store SnapshotStore, cfg OrchestratorConfig) *Orchestrator {
	cfg.Expenses = src
	cfg.Snapshots = store
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	return NewOrchestrator(cfg)
}

func TestRunManualMatchesLocalAggregation(t *testing.T) {
	src := &fakeExpenseSource{expenses: []core.Expense{
		datedExpense(1000, core.CategoryFood, 1),
		datedExpense(2000, core.CategoryTransport, 3),
		datedExpense(2000, core.CategoryFood, 10), // previous period
		datedExpense(9999, core.CategoryRent, 40), // outside both
	}}
	store := &fakeSnapshotStore{}
	o := newTestOrchestrator(src, store, OrchestratorConfig{})

	res, err := o.RunManual(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunManual() error = %v", err)
	}
	if res.Outcome != OutcomeRuleBased {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeRuleBased)
	}

	snap := res.Snapshot
	if len(snap.TopCategories) != 2 {
		t.Fatalf("TopCategories = %+v, want food and transport", snap.TopCategories)
	}
	if snap.TopCategories[0].Category != core.CategoryTransport || snap.TopCategories[0].Total.Cents != 2000 {
		t.Errorf("top category = %+v", snap.TopCategories[0])
	}

	byCat := make(map[core.Category]float64)
	for _, d := range snap.Deltas {
		byCat[d.Category] = d.DeltaPct
	}
	if got := byCat[core.CategoryFood]; got != -0.5 {
		t.Errorf("food delta = %v, want -0.5", got)
	}
	if got := byCat[core.CategoryTransport]; got != NewSpendingDelta {
		t.Errorf("transport delta = %v, want %v", got, NewSpendingDelta)
	}

	if len(store.snapshots) != 1 {
		t.Fatalf("stored %d snapshots, want 1", len(store.snapshots))
	}
	if snap.PeriodEnd != testNow || snap.PeriodStart != testNow.AddDate(0, 0, -7) {
		t.Errorf("period = %v – %v", snap.PeriodStart, snap.PeriodEnd)
	}
}

func TestRunManualAccumulatesSnapshots(t *testing.T) {
	src := &fakeExpenseSource{expenses: []core.Expense{datedExpense(1000, core.CategoryFood, 1)}}
	store := &fakeSnapshotStore{}
	o := newTestOrchestrator(src, store, OrchestratorConfig{})

	for i := 0; i < 2; i++ {
		if _, err := o.RunManual(context.Background(), 7); err != nil {
			t.Fatalf("RunManual() error = %v", err)
		}
	}
	if len(store.snapshots) != 2 {
		t.Errorf("stored %d snapshots, want 2", len(store.snapshots))
	}
}

func TestRunAutoReplacesSnapshots(t *testing.T) {
	src := &fakeExpenseSource{expenses: []core.Expense{datedExpense(1000, core.CategoryFood, 1)}}
	store := &fakeSnapshotStore{}
	o := newTestOrchestrator(src, store, OrchestratorConfig{})

	for i := 0; i < 2; i++ {
		if _, err := o.RunAuto(context.Background()); err != nil {
			t.Fatalf("RunAuto() error = %v", err)
		}
	}
	if len(store.snapshots) != 1 {
		t.Errorf("stored %d snapshots, want 1 after repeated auto runs", len(store.snapshots))
	}
}

func TestRunAutoDeleteFailureAborts(t *testing.T) {
	src := &fakeExpenseSource{expenses: []core.Expense{datedExpense(1000, core.CategoryFood, 1)}}
	store := &fakeSnapshotStore{deleteErr: errors.New("disk full")}
	o := newTestOrchestrator(src, store, OrchestratorConfig{})

	if _, err := o.RunAuto(context.Background()); err == nil {
		t.Fatal("RunAuto() error = nil, want delete failure")
	}
	if len(store.snapshots) != 0 {
		t.Errorf("stored %d snapshots after failed run, want 0", len(store.snapshots))
	}
}

func TestRunManualInvalidDays(t *testing.T) {
	o := newTestOrchestrator(&fakeExpenseSource{}, &fakeSnapshotStore{}, OrchestratorConfig{})
	if _, err := o.RunManual(context.Background(), 0); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("RunManual(0) error = %v, want ErrInvalidWindow", err)
	}
}

func TestRunWithAISuccess(t *testing.T) {
	gen := &fakeGenerator{result: core.AnalysisResult{
		Summary:         "You spent a lot on food.",
		Insights:        []string{"insight one"},
		Recommendations: []string{"rec one", "rec two"},
		Tone:            core.ToneCautionary,
	}}
	src := &fakeExpenseSource{expenses: []core.Expense{
		datedExpense(1000, core.CategoryFood, 1),
		datedExpense(2000, core.CategoryFood, 10),
	}}
	store := &fakeSnapshotStore{}
	o := newTestOrchestrator(src, store, OrchestratorConfig{
		Generator: gen,
		UseAI:     func() bool { return true },
	})

	res, err := o.RunManual(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunManual() error = %v", err)
	}
	if res.Outcome != OutcomeAI {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeAI)
	}
	if res.Snapshot.Summary != "You spent a lot on food." {
		t.Errorf("Summary = %q", res.Snapshot.Summary)
	}
	want := []string{"insight one", "rec one", "rec two"}
	if len(res.Snapshot.Insights) != len(want) {
		t.Fatalf("Insights = %v, want %v", res.Snapshot.Insights, want)
	}
	for i := range want {
		if res.Snapshot.Insights[i] != want[i] {
			t.Errorf("Insights[%d] = %q, want %q", i, res.Snapshot.Insights[i], want[i])
		}
	}
	// Numeric fields stay locally computed even on AI success.
	if len(res.Snapshot.TopCategories) != 1 || res.Snapshot.TopCategories[0].Total.Cents != 1000 {
		t.Errorf("TopCategories = %+v", res.Snapshot.TopCategories)
	}
	if gen.last.TotalSpending.Cents != 1000 || gen.last.PreviousSpending.Cents != 2000 {
		t.Errorf("generator context totals = %+v", gen.last)
	}
}

func TestRunWithAIFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream unavailable")}
	src := &fakeExpenseSource{expenses: []core.Expense{datedExpense(1000, core.CategoryFood, 1)}}
	store := &fakeSnapshotStore{}
	var notified bool
	o := newTestOrchestrator(src, store, OrchestratorConfig{
		Generator:  gen,
		UseAI:      func() bool { return true },
		OnFallback: func() { notified = true },
	})

	res, err := o.RunManual(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunManual() error = %v, want fallback instead of failure", err)
	}
	if res.Outcome != OutcomeFallback {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeFallback)
	}
	if !notified {
		t.Error("fallback notifier not called")
	}
	if len(store.snapshots) != 1 {
		t.Errorf("stored %d snapshots, want rule-based snapshot persisted", len(store.snapshots))
	}
	if res.Snapshot.Summary == "" {
		t.Error("fallback snapshot has empty summary")
	}
}

func TestRunWithAIDisabledSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{}
	src := &fakeExpenseSource{expenses: []core.Expense{datedExpense(1000, core.CategoryFood, 1)}}
	o := newTestOrchestrator(src, &fakeSnapshotStore{}, OrchestratorConfig{
		Generator: gen,
		UseAI:     func() bool { return false },
	})

	res, err := o.RunManual(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunManual() error = %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times with AI disabled", gen.calls)
	}
	if res.Outcome != OutcomeRuleBased {
		t.Errorf("Outcome = %s, want %s", res.Outcome, OutcomeRuleBased)
	}
}

func TestRunInsertFailurePropagates(t *testing.T) {
	src := &fakeExpenseSource{expenses: []core.Expense{datedExpense(1000, core.CategoryFood, 1)}}
	store := &fakeSnapshotStore{insertErr: errors.New("locked")}
	o := newTestOrchestrator(src, store, OrchestratorConfig{})

	if _, err := o.RunManual(context.Background(), 7); err == nil {
		t.Fatal("RunManual() error = nil, want insert failure")
	}
}
