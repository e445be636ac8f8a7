package analysis

import (
	"context"

	"finbuddy/internal/core"
)

// Ports for the orchestrator's outbound collaborators. All are injected at
// construction; nothing here reads ambient globals.
type (
	// ExpenseSource reads the full expense set. The pipeline never writes
	// expenses.
	ExpenseSource interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	// SnapshotStore persists analysis snapshots. The orchestrator is the
	// only writer of snapshots in the system.
	SnapshotStore interface {
		InsertSnapshot(ctx context.Context, s core.Snapshot) error
		ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
		DeleteAllSnapshots(ctx context.Context) error
	}

	// InsightGenerator produces AI-backed insights for an analysis context.
	InsightGenerator interface {
		GenerateInsights(ctx context.Context, ac core.AnalysisContext) (core.AnalysisResult, error)
	}

	// SnapshotExporter mirrors persisted snapshots to an external sink
	// (e.g. a spreadsheet). Export is best-effort.
	SnapshotExporter interface {
		ExportSnapshot(ctx context.Context, s core.Snapshot) error
	}
)
