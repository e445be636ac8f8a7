// Package services wires storage, the trigger queue, and the analysis
// pipeline behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finbuddy/internal/core"
	"finbuddy/internal/storage"
)

// AnalysisTrigger requests an automatic analysis run after a data mutation.
// Implementations either enqueue onto the worker queue or run inline.
type AnalysisTrigger interface {
	TriggerAutoAnalysis(ctx context.Context, reason string) error
}

// ExpenseService orchestrates expense mutations and the analysis trigger.
type ExpenseService struct {
	storage *storage.SQLiteRepository
	trigger AnalysisTrigger
	now     func() time.Time
}

func NewExpenseService(storage *storage.SQLiteRepository, trigger AnalysisTrigger) *ExpenseService {
	return &ExpenseService{
		storage: storage,
		trigger: trigger,
		now:     time.Now,
	}
}

// CreateExpense validates and saves an expense, then requests a fresh
// analysis. A failed trigger never fails the request; the expense is saved.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Source == "" {
		e.Source = core.SourceManual
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.storage.AppendExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.requestAnalysis(ctx, "expense_created")

	return e, nil
}

// UpdateExpense rewrites an existing expense's editable fields and requests
// a fresh analysis. Source, creation time, and import batch carry over from
// the stored expense.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	existing, err := s.storage.GetExpense(ctx, e.ID)
	if err != nil {
		return core.Expense{}, err
	}

	e.Source = existing.Source
	e.CreatedAt = existing.CreatedAt
	e.ImportBatchID = existing.ImportBatchID
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.storage.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.requestAnalysis(ctx, "expense_updated")

	return e, nil
}

// DeleteExpense removes an expense and requests a fresh analysis.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return err
	}

	s.requestAnalysis(ctx, "expense_deleted")

	return nil
}

// ListExpenses returns all stored expenses ordered by date.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx)
}

func (s *ExpenseService) requestAnalysis(ctx context.Context, reason string) {
	if s.trigger == nil {
		slog.WarnContext(ctx, "Analysis trigger not available, skipping", "reason", reason)
		return
	}
	if err := s.trigger.TriggerAutoAnalysis(ctx, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to trigger analysis",
			"reason", reason, "error", err)
		// Don't fail the request; the mutation is already persisted
	}
}
