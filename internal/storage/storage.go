package storage

import (
	"context"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage/models"
)

// Store persists completed trade outcomes and comparison records.
type Store interface {
	SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error
	GetExecution(ctx context.Context, packetID string) (*models.ExecutionRecord, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]*models.ExecutionRecord, error)

	SaveDiscrepancy(ctx context.Context, rec *models.DiscrepancyRecord) error
	RecentDiscrepancies(ctx context.Context, limit int) ([]*models.DiscrepancyRecord, error)

	RunMigrations() error
	Close() error
}
