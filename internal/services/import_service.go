package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finbuddy/internal/core"
	"finbuddy/internal/storage"
)

var (
	// ErrMissingColumns is returned when the CSV header lacks a required column.
	ErrMissingColumns = errors.New("import: header must contain title, amount and date columns")
	// ErrNoImportToUndo is returned when no import happened in this process.
	ErrNoImportToUndo = errors.New("import: nothing to undo")
)

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ImportResult reports what one CSV import did.
type ImportResult struct {
	BatchID  uuid.UUID
	Imported int
	Skipped  int
	Warnings []string
}

// ImportService reads expense CSVs and records each import as a batch so the
// most recent one can be undone.
type ImportService struct {
	storage *storage.SQLiteRepository
	trigger AnalysisTrigger
	now     func() time.Time

	mu          sync.Mutex
	lastBatchID uuid.UUID
}

func NewImportService(storage *storage.SQLiteRepository, trigger AnalysisTrigger) *ImportService {
	return &ImportService{
		storage: storage,
		trigger: trigger,
		now:     time.Now,
	}
}

// ImportCSV reads the stream, saves every parseable row under a fresh batch
// id, and collects a warning per skipped row. Title, amount and date columns
// are required in the header; merchant, category and notes are optional.
func (s *ImportService) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "amount", "date"} {
		if _, ok := cols[required]; !ok {
			return ImportResult{}, ErrMissingColumns
		}
	}

	result := ImportResult{BatchID: uuid.New()}
	line := 1 // header was line 1

	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("Line %d: %v; skipped", line, err))
			continue
		}

		e, err := s.rowToExpense(record, cols, result.BatchID)
		if err != nil {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("Line %d: %v; skipped", line, err))
			continue
		}

		if err := s.storage.AppendExpense(ctx, e); err != nil {
			return result, fmt.Errorf("save imported expense: %w", err)
		}
		result.Imported++
	}

	slog.InfoContext(ctx, "CSV import finished",
		"batch_id", result.BatchID,
		"imported", result.Imported,
		"skipped", result.Skipped)

	if result.Imported > 0 {
		s.mu.Lock()
		s.lastBatchID = result.BatchID
		s.mu.Unlock()

		if s.trigger != nil {
			if err := s.trigger.TriggerAutoAnalysis(ctx, "csv_imported"); err != nil {
				slog.ErrorContext(ctx, "Failed to trigger analysis after import", "error", err)
			}
		}
	}

	return result, nil
}

func (s *ImportService) rowToExpense(record []string, cols map[string]int, batchID uuid.UUID) (core.Expense, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	title := field("title")
	if title == "" {
		return core.Expense{}, errors.New("empty title")
	}

	cents, err := core.ParseDecimalToCents(field("amount"))
	if err != nil {
		return core.Expense{}, fmt.Errorf("amount: %w", err)
	}
	if cents <= 0 {
		return core.Expense{}, errors.New("amount must be positive")
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:            uuid.New(),
		Title:         title,
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Merchant:      field("merchant"),
		Notes:         field("notes"),
		Source:        core.SourceImported,
		CreatedAt:     s.now(),
		ImportBatchID: batchID,
	}

	// An empty category column simply leaves the category unset; the
	// uncertain flag marks only labels that were present but unmappable.
	if raw := field("category"); raw != "" {
		if cat := core.ParseCategory(raw); cat != "" {
			e.Category = cat
		} else {
			e.Category = core.CategoryOther
			e.CategoryUncertain = true
		}
	}

	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// UndoLastImport deletes every expense from the most recent import of this
// process. Undo history is one level deep.
func (s *ImportService) UndoLastImport(ctx context.Context) (int64, error) {
	s.mu.Lock()
	batchID := s.lastBatchID
	s.mu.Unlock()

	if batchID == uuid.Nil {
		return 0, ErrNoImportToUndo
	}

	deleted, err := s.storage.DeleteExpensesByBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("undo import: %w", err)
	}

	s.clearUndoState()

	slog.InfoContext(ctx, "Import undone", "batch_id", batchID, "deleted", deleted)

	if s.trigger != nil {
		if err := s.trigger.TriggerAutoAnalysis(ctx, "import_undone"); err != nil {
			slog.ErrorContext(ctx, "Failed to trigger analysis after undo", "error", err)
		}
	}

	return deleted, nil
}

// clearUndoState forgets the last import batch. Called after an undo and
// after a full data reset, since the batch rows no longer exist.
func (s *ImportService) clearUndoState() {
	s.mu.Lock()
	s.lastBatchID = uuid.Nil
	s.mu.Unlock()
}
