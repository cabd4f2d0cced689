package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of a creative batch.
// Transitions are forward-only; a batch never regresses.
type BatchStatus string

const (
	BatchStatusGenerating  BatchStatus = "GENERATING"
	BatchStatusAssetsReady BatchStatus = "ASSETS_READY"
	BatchStatusPublished   BatchStatus = "PUBLISHED"
	BatchStatusCompleted   BatchStatus = "COMPLETED"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusGenerating, BatchStatusAssetsReady, BatchStatusPublished, BatchStatusCompleted:
		return true
	}
	return false
}

func (s BatchStatus) rank() int {
	switch s {
	case BatchStatusGenerating:
		return 0
	case BatchStatusAssetsReady:
		return 1
	case BatchStatusPublished:
		return 2
	case BatchStatusCompleted:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether moving to next is a forward transition.
func (s BatchStatus) CanAdvanceTo(next BatchStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.rank() > s.rank()
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid batch status %q", ErrValidation, s)
	}
	return st, nil
}

// Batch groups creative items generated together and reviewed together.
// Batches are append-only history: created when generation starts, advanced
// as assets and publication complete, never deleted.
type Batch struct {
	ID            string      `gorm:"type:uuid;primaryKey"`
	DeclaredCount int         `gorm:"not null"`
	Status        BatchStatus `gorm:"type:varchar(20);not null"`
	RemoteFolder  *string     `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b *Batch) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: batch is required", ErrValidation)
	}
	if b.DeclaredCount <= 0 {
		return fmt.Errorf("%w: declared count must be positive", ErrValidation)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid batch status %q", ErrValidation, b.Status)
	}
	return nil
}
