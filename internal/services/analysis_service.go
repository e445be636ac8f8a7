package services

import (
	"context"

	"finbuddy/internal/analysis"
	"finbuddy/internal/core"
	"finbuddy/internal/storage"
)

// AnalysisService exposes manual runs and snapshot history to the handlers.
type AnalysisService struct {
	orchestrator *analysis.Orchestrator
	storage      *storage.SQLiteRepository
}

func NewAnalysisService(orchestrator *analysis.Orchestrator, storage *storage.SQLiteRepository) *AnalysisService {
	return &AnalysisService{
		orchestrator: orchestrator,
		storage:      storage,
	}
}

// RunManual runs the pipeline over an explicit window; history accumulates.
func (s *AnalysisService) RunManual(ctx context.Context, windowDays int) (analysis.RunResult, error) {
	return s.orchestrator.RunManual(ctx, windowDays)
}

// ListSnapshots returns snapshots newest first.
func (s *AnalysisService) ListSnapshots(ctx context.Context) ([]core.Snapshot, error) {
	return s.storage.ListSnapshots(ctx)
}
