// Package store 定义回测结果的持久化接口，具体实现见 store/sqlite。
package store

import (
	"context"

	"github.com/Gfz-arka/MFE-5250/internal/store/model"
)

// Repositories 聚合各表的仓储。
type Repositories interface {
	Runs() RunRepository
	Equity() EquityRepository
	Executions() ExecutionRepository
}

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Repositories
	Commit() error
	Rollback() error
}

// Store is the entry point for database access.
type Store interface {
	Repositories
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// RunRepository handles backtest run rows.
type RunRepository interface {
	Save(ctx context.Context, run *model.RunModel) error
	FindByID(ctx context.Context, id string) (*model.RunModel, error)
	ListRecent(ctx context.Context, limit int) ([]model.RunModel, error)
	ListByBatch(ctx context.Context, batchID string) ([]model.RunModel, error)
}

// EquityRepository handles equity curve points.
type EquityRepository interface {
	InsertBatch(ctx context.Context, points []model.EquityPointModel) error
	ListByRun(ctx context.Context, runID string) ([]model.EquityPointModel, error)
}

// ExecutionRepository handles per-fill execution rows.
type ExecutionRepository interface {
	InsertBatch(ctx context.Context, rows []model.ExecutionModel) error
	ListByRun(ctx context.Context, runID string, limit int) ([]model.ExecutionModel, error)
}
