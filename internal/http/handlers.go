package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"finbuddy/internal/analysis"
	"finbuddy/internal/cache"
	"finbuddy/internal/core"
	"finbuddy/internal/services"
	"finbuddy/internal/storage"
)

// ExpenseAPI is what the expense handlers need from the service layer.
type ExpenseAPI interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

type ImportAPI interface {
	ImportCSV(ctx context.Context, r io.Reader) (services.ImportResult, error)
	UndoLastImport(ctx context.Context) (int64, error)
}

type AnalysisAPI interface {
	RunManual(ctx context.Context, windowDays int) (analysis.RunResult, error)
	ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
}

type MaintenanceAPI interface {
	ResetAll(ctx context.Context) error
}

type expenseHandlers struct {
	api ExpenseAPI
}

type createExpenseRequest struct {
	Title    string `json:"title"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
	Merchant string `json:"merchant,omitempty"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type expenseResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Amount            string `json:"amount"`
	AmountCents       int64  `json:"amount_cents"`
	Date              string `json:"date"`
	Merchant          string `json:"merchant,omitempty"`
	Category          string `json:"category"`
	Source            string `json:"source"`
	Notes             string `json:"notes,omitempty"`
	CategoryUncertain bool   `json:"category_uncertain,omitempty"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:                e.ID.String(),
		Title:             e.Title,
		Amount:            e.Amount.String(),
		AmountCents:       e.Amount.Cents,
		Date:              e.Date.Format("2006-01-02"),
		Merchant:          e.Merchant,
		Category:          string(e.CategoryOrOther()),
		Source:            string(e.Source),
		Notes:             e.Notes,
		CategoryUncertain: e.CategoryUncertain,
	}
}

func (h *expenseHandlers) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *expenseHandlers) list(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.api.ListExpenses(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *expenseHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	e := core.Expense{
		Title:    strings.TrimSpace(req.Title),
		Amount:   core.Money{Cents: cents},
		Date:     date,
		Merchant: strings.TrimSpace(req.Merchant),
		Category: core.ParseCategory(req.Category),
		Notes:    strings.TrimSpace(req.Notes),
	}

	created, err := h.api.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseResponse(created))
}

func (h *expenseHandlers) handleItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/expenses/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *expenseHandlers) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: "+err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	e := core.Expense{
		ID:       id,
		Title:    strings.TrimSpace(req.Title),
		Amount:   core.Money{Cents: cents},
		Date:     date,
		Merchant: strings.TrimSpace(req.Merchant),
		Category: core.ParseCategory(req.Category),
		Notes:    strings.TrimSpace(req.Notes),
	}

	updated, err := h.api.UpdateExpense(r.Context(), e)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "expense not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(updated))
}

func (h *expenseHandlers) delete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.api.DeleteExpense(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "expense not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete expense failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type importHandlers struct {
	api ImportAPI
}

type importResponse struct {
	BatchID  string   `json:"batch_id"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *importHandlers) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body := r.Body
	// Accept multipart uploads with a "file" field as well as a raw CSV body.
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing 'file' field")
			return
		}
		defer file.Close()
		body = file
	}

	result, err := h.api.ImportCSV(r.Context(), body)
	if err != nil {
		if errors.Is(err, services.ErrMissingColumns) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "CSV import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		BatchID:  result.BatchID.String(),
		Imported: result.Imported,
		Skipped:  result.Skipped,
		Warnings: result.Warnings,
	})
}

func (h *importHandlers) handleUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deleted, err := h.api.UndoLastImport(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoImportToUndo) {
			writeError(w, http.StatusConflict, "no import to undo")
			return
		}
		slog.ErrorContext(r.Context(), "Undo import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "undo failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

type analysisHandlers struct {
	api AnalysisAPI
	// Snapshot reads are cached briefly; the worker writes snapshots from
	// another process, so the TTL bounds staleness.
	snapshots *cache.LRUCache[[]core.Snapshot]
}

const snapshotsCacheKey = "all"

func (h *analysisHandlers) listSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	if cached, ok := h.snapshots.Get(snapshotsCacheKey); ok {
		return cached, nil
	}
	snapshots, err := h.api.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	h.snapshots.Set(snapshotsCacheKey, snapshots)
	return snapshots, nil
}

type runAnalysisRequest struct {
	Days int `json:"days"`
}

type categoryTotalResponse struct {
	Category string `json:"category"`
	Total    string `json:"total"`
	Cents    int64  `json:"cents"`
}

type categoryDeltaResponse struct {
	Category string  `json:"category"`
	DeltaPct float64 `json:"delta_pct"`
	Display  string  `json:"display"`
}

type snapshotResponse struct {
	ID                 string                  `json:"id"`
	CreatedAt          string                  `json:"created_at"`
	PeriodStart        string                  `json:"period_start"`
	PeriodEnd          string                  `json:"period_end"`
	TopCategories      []categoryTotalResponse `json:"top_categories"`
	Deltas             []categoryDeltaResponse `json:"deltas"`
	RecurringMerchants []string                `json:"recurring_merchants"`
	Insights           []string                `json:"insights"`
	Summary            string                  `json:"summary"`
	Outcome            string                  `json:"outcome,omitempty"`
}

func toSnapshotResponse(s core.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		ID:                 s.ID.String(),
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
		PeriodStart:        s.PeriodStart.Format(time.RFC3339),
		PeriodEnd:          s.PeriodEnd.Format(time.RFC3339),
		RecurringMerchants: s.RecurringMerchants,
		Insights:           s.Insights,
		Summary:            s.Summary,
	}
	for _, ct := range s.TopCategories {
		resp.TopCategories = append(resp.TopCategories, categoryTotalResponse{
			Category: string(ct.Category),
			Total:    ct.Total.String(),
			Cents:    ct.Total.Cents,
		})
	}
	for _, d := range s.Deltas {
		resp.Deltas = append(resp.Deltas, categoryDeltaResponse{
			Category: string(d.Category),
			DeltaPct: d.DeltaPct,
			Display:  analysis.FormatDeltaPct(d.DeltaPct),
		})
	}
	return resp
}

func (h *analysisHandlers) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req := runAnalysisRequest{Days: analysis.AutoWindowDays}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	result, err := h.api.RunManual(r.Context(), req.Days)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidWindow) {
			writeError(w, http.StatusUnprocessableEntity, "days must be a positive number")
			return
		}
		slog.ErrorContext(r.Context(), "Manual analysis run failed", "error", err, "days", req.Days)
		writeError(w, http.StatusInternalServerError, "analysis run failed")
		return
	}

	h.snapshots.Delete(snapshotsCacheKey)

	resp := toSnapshotResponse(result.Snapshot)
	resp.Outcome = string(result.Outcome)
	writeJSON(w, http.StatusOK, resp)
}

func (h *analysisHandlers) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshots, err := h.listSnapshots(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List snapshots failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshots")
		return
	}
	if len(snapshots) == 0 {
		writeError(w, http.StatusNotFound, "no analysis snapshot yet")
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snapshots[0]))
}

func (h *analysisHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshots, err := h.listSnapshots(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List snapshots failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshots")
		return
	}

	out := make([]snapshotResponse, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, toSnapshotResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

type maintenanceHandlers struct {
	api MaintenanceAPI
}

func (h *maintenanceHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Destructive; require explicit confirmation
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "add ?confirm=true to reset all data")
		return
	}

	if err := h.api.ResetAll(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Reset all failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
