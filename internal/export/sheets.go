// Package export mirrors analysis snapshots to a Google Sheet so they can be
// eyeballed outside the app. Export is best-effort; a failure never fails the
// analysis run that produced the snapshot.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finbuddy/internal/analysis"
	"finbuddy/internal/core"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ analysis.SnapshotExporter = (*SheetsExporter)(nil)

// NewSheetsExporterFromEnv builds an exporter from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Snapshots").
func NewSheetsExporterFromEnv(ctx context.Context) (*SheetsExporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Snapshots"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// ExportSnapshot appends one summary row per snapshot.
func (e *SheetsExporter) ExportSnapshot(ctx context.Context, s core.Snapshot) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row := snapshotRow(s)
	rng := fmt.Sprintf("%s!A:G", e.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append snapshot row to %s: %w", e.sheetName, err)
	}

	slog.InfoContext(ctx, "Snapshot exported to Google Sheets",
		"snapshot_id", s.ID,
		"sheet", e.sheetName)

	return nil
}

func snapshotRow(s core.Snapshot) []any {
	var total int64
	cats := make([]string, 0, len(s.TopCategories))
	for _, ct := range s.TopCategories {
		total += ct.Total.Cents
		cats = append(cats, fmt.Sprintf("%s %s", ct.Category.DisplayName(), ct.Total))
	}

	return []any{
		s.CreatedAt.Format("2006-01-02 15:04"),
		s.PeriodStart.Format("2006-01-02"),
		s.PeriodEnd.Format("2006-01-02"),
		float64(total) / 100.0,
		strings.Join(cats, "; "),
		strings.Join(s.RecurringMerchants, ", "),
		s.Summary,
	}
}
