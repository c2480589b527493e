package repository

import (
	"context"
	"time"

	"comolor-pos/internal/model"

	"gorm.io/gorm"
)

// TransactionRepository is the ledger of inbound payment notifications.
// TransactionID carries a unique index, so a concurrent duplicate insert
// surfaces as gorm.ErrDuplicatedKey rather than a second row.
type TransactionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, txn *model.MpesaTransaction) error
	Exists(ctx context.Context, transactionID string) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*model.MpesaTransaction, error)

	// MarkProcessed consumes the transaction: processed flag, shop and sale
	// links in one guarded update. Returns gorm.ErrRecordNotFound when the
	// transaction was already processed by a concurrent path.
	MarkProcessed(ctx context.Context, tx *gorm.DB, transactionID string, shopID, saleID *uint) error

	// LinkShop records which shop a still-unprocessed transaction belongs to.
	LinkShop(ctx context.Context, tx *gorm.DB, transactionID string, shopID uint) error

	ListUnprocessedLicense(ctx context.Context) ([]*model.MpesaTransaction, error)

	// FindRecentUnprocessed returns unprocessed transactions at a shop seen
	// at or after the given time, newest first. The status-poll re-match
	// scans these for an amount fit.
	FindRecentUnprocessed(ctx context.Context, shopID uint, since time.Time) ([]*model.MpesaTransaction, error)
}

type transactionRepoImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepoImpl{
		db: db,
	}
}

func (r *transactionRepoImpl) Create(ctx context.Context, tx *gorm.DB, txn *model.MpesaTransaction) error {
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepoImpl) Exists(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MpesaTransaction{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error

	return count > 0, err
}

func (r *transactionRepoImpl) FindByTransactionID(ctx context.Context, transactionID string) (*model.MpesaTransaction, error) {
	var txn model.MpesaTransaction
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&txn).Error

	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *transactionRepoImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, transactionID string, shopID, saleID *uint) error {
	updates := map[string]interface{}{
		"is_processed": true,
	}
	if shopID != nil {
		updates["shop_id"] = *shopID
	}
	if saleID != nil {
		updates["sale_id"] = *saleID
	}

	result := tx.WithContext(ctx).Model(&model.MpesaTransaction{}).
		Where("transaction_id = ? AND is_processed = ?", transactionID, false).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *transactionRepoImpl) LinkShop(ctx context.Context, tx *gorm.DB, transactionID string, shopID uint) error {
	return tx.WithContext(ctx).Model(&model.MpesaTransaction{}).
		Where("transaction_id = ? AND is_processed = ?", transactionID, false).
		Update("shop_id", shopID).Error
}

func (r *transactionRepoImpl) ListUnprocessedLicense(ctx context.Context) ([]*model.MpesaTransaction, error) {
	var txns []*model.MpesaTransaction
	err := r.db.WithContext(ctx).
		Where("transaction_type = ? AND is_processed = ?", model.TransactionTypeLicense, false).
		Order("created_at DESC").
		Find(&txns).Error

	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *transactionRepoImpl) FindRecentUnprocessed(ctx context.Context, shopID uint, since time.Time) ([]*model.MpesaTransaction, error) {
	var txns []*model.MpesaTransaction
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND is_processed = ? AND transaction_time >= ?", shopID, false, since).
		Order("transaction_time DESC").
		Find(&txns).Error

	if err != nil {
		return nil, err
	}

	return txns, nil
}
