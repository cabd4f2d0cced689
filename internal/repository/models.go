package repository

import (
	"time"

	"github.com/creativeops/review-engine/internal/domain"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID            string             `gorm:"type:uuid;primaryKey"`
	DeclaredCount int                `gorm:"not null"`
	Status        domain.BatchStatus `gorm:"type:varchar(20);not null"`
	RemoteFolder  *string            `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// BatchItemModel is the persistence model for batch_items.
type BatchItemModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	BatchID       string  `gorm:"type:uuid;not null"`
	ItemIndex     int     `gorm:"not null"`
	Title         string  `gorm:"type:varchar(255);not null"`
	Content       string  `gorm:"type:text;not null"`
	Fingerprint   string  `gorm:"type:varchar(64);not null"`
	AudioHandle   *string `gorm:"type:varchar(255)"`
	VideoHandle   *string `gorm:"type:varchar(255)"`
	RemoteAssetID *string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (BatchItemModel) TableName() string {
	return "batch_items"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:            b.ID,
		DeclaredCount: b.DeclaredCount,
		Status:        b.Status,
		RemoteFolder:  b.RemoteFolder,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:            m.ID,
		DeclaredCount: m.DeclaredCount,
		Status:        m.Status,
		RemoteFolder:  m.RemoteFolder,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func itemModelFromDomain(i *domain.BatchItem) *BatchItemModel {
	if i == nil {
		return nil
	}

	return &BatchItemModel{
		ID:            i.ID,
		BatchID:       i.BatchID,
		ItemIndex:     i.Index,
		Title:         i.Title,
		Content:       i.Content,
		Fingerprint:   i.Fingerprint,
		AudioHandle:   i.AudioHandle,
		VideoHandle:   i.VideoHandle,
		RemoteAssetID: i.RemoteAssetID,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func itemModelToDomain(m *BatchItemModel) *domain.BatchItem {
	if m == nil {
		return nil
	}

	return &domain.BatchItem{
		ID:            m.ID,
		BatchID:       m.BatchID,
		Index:         m.ItemIndex,
		Title:         m.Title,
		Content:       m.Content,
		Fingerprint:   m.Fingerprint,
		AudioHandle:   m.AudioHandle,
		VideoHandle:   m.VideoHandle,
		RemoteAssetID: m.RemoteAssetID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
