package repository

import (
	"context"
	"fmt"

	"github.com/creativeops/review-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetUpdate attaches generated asset handles to one item by index.
type AssetUpdate struct {
	ItemIndex     int
	AudioHandle   *string
	VideoHandle   *string
	RemoteAssetID *string
}

type ItemRepository interface {
	ReplaceForBatch(ctx context.Context, batchID string, items []*domain.BatchItem) error
	GetByBatchID(ctx context.Context, batchID string) ([]domain.BatchItem, error)
	AttachAssets(ctx context.Context, batchID string, updates []AssetUpdate) error
}

type GormItemRepo struct {
	db *gorm.DB
}

func NewGormItemRepo(db *gorm.DB) *GormItemRepo {
	return &GormItemRepo{db: db}
}

// ReplaceForBatch stores the generated items for a batch, replacing any
// earlier generation attempt. Content and fingerprint are immutable after
// this point; only asset columns are touched later.
func (r *GormItemRepo) ReplaceForBatch(ctx context.Context, batchID string, items []*domain.BatchItem) error {
	models := make([]BatchItemModel, 0, len(items))
	for _, item := range items {
		models = append(models, *itemModelFromDomain(item))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&BatchItemModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&models).Error
	})
}

func (r *GormItemRepo) GetByBatchID(ctx context.Context, batchID string) ([]domain.BatchItem, error) {
	var models []BatchItemModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("item_index ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.BatchItem, 0, len(models))
	for i := range models {
		items = append(items, *itemModelToDomain(&models[i]))
	}
	return items, nil
}

func (r *GormItemRepo) AttachAssets(ctx context.Context, batchID string, updates []AssetUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			columns := map[string]interface{}{}
			if u.AudioHandle != nil {
				columns["audio_handle"] = *u.AudioHandle
			}
			if u.VideoHandle != nil {
				columns["video_handle"] = *u.VideoHandle
			}
			if u.RemoteAssetID != nil {
				columns["remote_asset_id"] = *u.RemoteAssetID
			}
			if len(columns) == 0 {
				continue
			}

			result := tx.Model(&BatchItemModel{}).
				Where("batch_id = ? AND item_index = ?", batchID, u.ItemIndex).
				Updates(columns)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: item %d in batch %s", domain.ErrNotFound, u.ItemIndex, batchID)
			}
		}
		return nil
	})
}
