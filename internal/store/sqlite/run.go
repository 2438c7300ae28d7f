package sqlite

import (
	"context"
	"errors"

	"github.com/Gfz-arka/MFE-5250/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepo(db *gorm.DB) *runRepository {
	return &runRepository{db: db}
}

// Save inserts or updates a run by ID.
func (r *runRepository) Save(ctx context.Context, run *model.RunModel) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	if run.ID == "" {
		return errors.New("run id cannot be empty")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(run).Error
}

// FindByID returns nil, nil when the run does not exist.
func (r *runRepository) FindByID(ctx context.Context, id string) (*model.RunModel, error) {
	var run model.RunModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) ListRecent(ctx context.Context, limit int) ([]model.RunModel, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var runs []model.RunModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, batch_id DESC, layer ASC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *runRepository) ListByBatch(ctx context.Context, batchID string) ([]model.RunModel, error) {
	var runs []model.RunModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("layer ASC").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
