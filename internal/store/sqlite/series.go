package sqlite

import (
	"context"

	"github.com/Gfz-arka/MFE-5250/internal/store/model"

	"gorm.io/gorm"
)

const insertBatchSize = 500

type equityRepo struct {
	db *gorm.DB
}

func NewEquityRepo(db *gorm.DB) *equityRepo {
	return &equityRepo{db: db}
}

func (r *equityRepo) InsertBatch(ctx context.Context, points []model.EquityPointModel) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(points, insertBatchSize).Error
}

func (r *equityRepo) ListByRun(ctx context.Context, runID string) ([]model.EquityPointModel, error) {
	var points []model.EquityPointModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC").Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

type executionRepo struct {
	db *gorm.DB
}

func NewExecutionRepo(db *gorm.DB) *executionRepo {
	return &executionRepo{db: db}
}

func (r *executionRepo) InsertBatch(ctx context.Context, rows []model.ExecutionModel) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (r *executionRepo) ListByRun(ctx context.Context, runID string, limit int) ([]model.ExecutionModel, error) {
	var rows []model.ExecutionModel
	q := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
