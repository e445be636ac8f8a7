package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"finbuddy/internal/analysis"
	"finbuddy/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a delete or lookup targets a missing row.
var ErrNotFound = errors.New("storage: not found")

type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ analysis.ExpenseSource = (*SQLiteRepository)(nil)
	_ analysis.SnapshotStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendExpense persists a validated expense.
func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.Expense) error {
	batchID := ""
	if e.ImportBatchID != uuid.Nil {
		batchID = e.ImportBatchID.String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, title, amount_cents, date, merchant, category, source, notes, created_at, import_batch_id, category_uncertain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Title, e.Amount.Cents, e.Date.Unix(), e.Merchant,
		string(e.CategoryOrOther()), string(e.Source), e.Notes, e.CreatedAt.Unix(),
		batchID, boolToInt(e.CategoryUncertain))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"title", e.Title,
		"amount_cents", e.Amount.Cents,
		"category", e.CategoryOrOther(),
		"source", e.Source)

	return nil
}

// ListExpenses returns every expense ordered by date ascending.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, amount_cents, date, merchant, category, source, notes, created_at, import_batch_id, category_uncertain
		FROM expenses
		ORDER BY date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns one expense. Returns ErrNotFound for unknown ids.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, amount_cents, date, merchant, category, source, notes, created_at, import_batch_id, category_uncertain
		FROM expenses
		WHERE id = ?`, id.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("query expense: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return core.Expense{}, fmt.Errorf("query expense: %w", err)
		}
		return core.Expense{}, ErrNotFound
	}
	return scanExpense(rows)
}

// UpdateExpense rewrites the editable fields of an existing expense. Source,
// creation time, and import batch are left as stored. Returns ErrNotFound
// for unknown ids.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, date = ?, merchant = ?, category = ?, notes = ?, category_uncertain = ?
		WHERE id = ?`,
		e.Title, e.Amount.Cents, e.Date.Unix(), e.Merchant,
		string(e.CategoryOrOther()), e.Notes, boolToInt(e.CategoryUncertain),
		e.ID.String())
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated",
		"id", e.ID,
		"title", e.Title,
		"amount_cents", e.Amount.Cents,
		"category", e.CategoryOrOther())

	return nil
}

// DeleteExpense removes one expense. Returns ErrNotFound for unknown ids.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpensesByBatch removes every expense imported under the given batch
// and reports how many rows went away.
func (r *SQLiteRepository) DeleteExpensesByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE import_batch_id = ?`, batchID.String())
	if err != nil {
		return 0, fmt.Errorf("delete expenses by batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete batch rows affected: %w", err)
	}
	return affected, nil
}

func (r *SQLiteRepository) DeleteAllExpenses(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("delete all expenses: %w", err)
	}
	return nil
}

// InsertSnapshot stores the snapshot and its ordered child rows in one
// transaction.
func (r *SQLiteRepository) InsertSnapshot(ctx context.Context, s core.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, created_at, period_start, period_end, summary)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID.String(), s.CreatedAt.Unix(), s.PeriodStart.Unix(), s.PeriodEnd.Unix(), s.Summary)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for i, ct := range s.TopCategories {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_categories (snapshot_id, position, category, total_cents)
			VALUES (?, ?, ?, ?)`,
			s.ID.String(), i, string(ct.Category), ct.Total.Cents)
		if err != nil {
			return fmt.Errorf("insert snapshot category: %w", err)
		}
	}
	for i, d := range s.Deltas {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_deltas (snapshot_id, position, category, delta_pct)
			VALUES (?, ?, ?, ?)`,
			s.ID.String(), i, string(d.Category), d.DeltaPct)
		if err != nil {
			return fmt.Errorf("insert snapshot delta: %w", err)
		}
	}
	for i, m := range s.RecurringMerchants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_merchants (snapshot_id, position, merchant)
			VALUES (?, ?, ?)`,
			s.ID.String(), i, m)
		if err != nil {
			return fmt.Errorf("insert snapshot merchant: %w", err)
		}
	}
	for i, in := range s.Insights {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_insights (snapshot_id, position, insight)
			VALUES (?, ?, ?)`,
			s.ID.String(), i, in)
		if err != nil {
			return fmt.Errorf("insert snapshot insight: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// ListSnapshots returns snapshots newest first, child rows in stored order.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, period_start, period_end, summary
		FROM snapshots
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []core.Snapshot
	for rows.Next() {
		var (
			idStr                             string
			createdAt, periodStart, periodEnd int64
			summary                           string
		)
		if err := rows.Scan(&idStr, &createdAt, &periodStart, &periodEnd, &summary); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot id %q: %w", idStr, err)
		}
		snapshots = append(snapshots, core.Snapshot{
			ID:          id,
			CreatedAt:   time.Unix(createdAt, 0).UTC(),
			PeriodStart: time.Unix(periodStart, 0).UTC(),
			PeriodEnd:   time.Unix(periodEnd, 0).UTC(),
			Summary:     summary,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	for i := range snapshots {
		if err := r.loadSnapshotChildren(ctx, &snapshots[i]); err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

func (r *SQLiteRepository) loadSnapshotChildren(ctx context.Context, s *core.Snapshot) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, total_cents FROM snapshot_categories
		WHERE snapshot_id = ? ORDER BY position`, s.ID.String())
	if err != nil {
		return fmt.Errorf("query snapshot categories: %w", err)
	}
	for rows.Next() {
		var cat string
		var cents int64
		if err := rows.Scan(&cat, &cents); err != nil {
			rows.Close()
			return fmt.Errorf("scan snapshot category: %w", err)
		}
		s.TopCategories = append(s.TopCategories, core.CategoryTotal{
			Category: core.Category(cat),
			Total:    core.Money{Cents: cents},
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot categories: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT category, delta_pct FROM snapshot_deltas
		WHERE snapshot_id = ? ORDER BY position`, s.ID.String())
	if err != nil {
		return fmt.Errorf("query snapshot deltas: %w", err)
	}
	for rows.Next() {
		var cat string
		var pct float64
		if err := rows.Scan(&cat, &pct); err != nil {
			rows.Close()
			return fmt.Errorf("scan snapshot delta: %w", err)
		}
		s.Deltas = append(s.Deltas, core.CategoryDelta{
			Category: core.Category(cat),
			DeltaPct: pct,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot deltas: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT merchant FROM snapshot_merchants
		WHERE snapshot_id = ? ORDER BY position`, s.ID.String())
	if err != nil {
		return fmt.Errorf("query snapshot merchants: %w", err)
	}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			rows.Close()
			return fmt.Errorf("scan snapshot merchant: %w", err)
		}
		s.RecurringMerchants = append(s.RecurringMerchants, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot merchants: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT insight FROM snapshot_insights
		WHERE snapshot_id = ? ORDER BY position`, s.ID.String())
	if err != nil {
		return fmt.Errorf("query snapshot insights: %w", err)
	}
	for rows.Next() {
		var in string
		if err := rows.Scan(&in); err != nil {
			rows.Close()
			return fmt.Errorf("scan snapshot insight: %w", err)
		}
		s.Insights = append(s.Insights, in)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot insights: %w", err)
	}

	return nil
}

// DeleteAllSnapshots removes snapshots and their child rows in one
// transaction. Children go first; the schema has no ON DELETE CASCADE.
func (r *SQLiteRepository) DeleteAllSnapshots(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"snapshot_insights", "snapshot_merchants", "snapshot_deltas", "snapshot_categories", "snapshots"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

// ResetAll wipes expenses and snapshots.
func (r *SQLiteRepository) ResetAll(ctx context.Context) error {
	if err := r.DeleteAllSnapshots(ctx); err != nil {
		return err
	}
	if err := r.DeleteAllExpenses(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "All data reset")
	return nil
}

func scanExpense(rows *sql.Rows) (core.Expense, error) {
	var (
		idStr, batchStr  string
		date, createdAt  int64
		uncertain        int
		e                core.Expense
		category, source string
	)
	if err := rows.Scan(&idStr, &e.Title, &e.Amount.Cents, &date, &e.Merchant,
		&category, &source, &e.Notes, &createdAt, &batchStr, &uncertain); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse expense id %q: %w", idStr, err)
	}
	e.ID = id
	e.Date = time.Unix(date, 0).UTC()
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.Category = core.Category(category)
	e.Source = core.Source(source)
	e.CategoryUncertain = uncertain != 0
	if batchStr != "" {
		batch, err := uuid.Parse(batchStr)
		if err != nil {
			return core.Expense{}, fmt.Errorf("parse batch id %q: %w", batchStr, err)
		}
		e.ImportBatchID = batch
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
