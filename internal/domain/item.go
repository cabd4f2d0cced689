package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// BatchItem is one creative unit within a batch: a script plus optional
// audio/video assets. Content is fingerprinted at creation time and treated
// as immutable by the approval workflow afterwards.
type BatchItem struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	BatchID       string  `gorm:"type:uuid;not null"`
	Index         int     `gorm:"column:item_index;not null"`
	Title         string  `gorm:"type:varchar(255);not null"`
	Content       string  `gorm:"type:text;not null"`
	Fingerprint   string  `gorm:"type:varchar(64);not null"`
	AudioHandle   *string `gorm:"type:varchar(255)"`
	VideoHandle   *string `gorm:"type:varchar(255)"`
	RemoteAssetID *string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContentFingerprint returns the hex SHA-256 digest of item content.
func ContentFingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (i *BatchItem) HasAudio() bool {
	return i != nil && i.AudioHandle != nil && strings.TrimSpace(*i.AudioHandle) != ""
}

func (i *BatchItem) HasVideo() bool {
	return i != nil && i.VideoHandle != nil && strings.TrimSpace(*i.VideoHandle) != ""
}

func (i *BatchItem) HasRemoteAsset() bool {
	return i != nil && i.RemoteAssetID != nil && strings.TrimSpace(*i.RemoteAssetID) != ""
}

func (i *BatchItem) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: item is required", ErrValidation)
	}
	if i.Index < 0 {
		return fmt.Errorf("%w: item index must not be negative", ErrValidation)
	}
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: item title is required", ErrValidation)
	}
	if strings.TrimSpace(i.Content) == "" {
		return fmt.Errorf("%w: item content is required", ErrValidation)
	}
	return nil
}
