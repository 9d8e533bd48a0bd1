// Package repository persists media metadata through gorm.
//
// Repositories never open transactions on their own. Callers that write a
// family of related records run them through TxRunner and use the
// transaction-bound repository handed to their callback.
package repository

import (
	"context"
	"fmt"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"gorm.io/gorm"
)

// TxRunner runs a function inside a database transaction.
type TxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

// RunInTx commits when fn returns nil and rolls back otherwise. Commit
// failures are reported as domain.ErrMetadataWrite.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(repo *MediaRepository) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("%w: begin transaction: %w", domain.ErrMetadataWrite, tx.Error)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(NewMediaRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrMetadataWrite, err)
	}
	committed = true
	return nil
}
