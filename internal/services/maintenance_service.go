package services

import (
	"context"
	"fmt"

	"finbuddy/internal/storage"
)

// MaintenanceService handles destructive whole-database operations.
type MaintenanceService struct {
	storage *storage.SQLiteRepository
	imports *ImportService
}

func NewMaintenanceService(storage *storage.SQLiteRepository, imports *ImportService) *MaintenanceService {
	return &MaintenanceService{storage: storage, imports: imports}
}

// ResetAll wipes every expense and every snapshot, and forgets any pending
// import undo since its batch rows are gone.
func (s *MaintenanceService) ResetAll(ctx context.Context) error {
	if err := s.storage.ResetAll(ctx); err != nil {
		return fmt.Errorf("reset all: %w", err)
	}
	if s.imports != nil {
		s.imports.clearUndoState()
	}
	return nil
}
