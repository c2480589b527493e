package repository

import (
	"context"

	"comolor-pos/internal/model"

	"gorm.io/gorm"
)

type SaleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, sale *model.Sale) error
	FindByID(ctx context.Context, saleID uint) (*model.Sale, error)

	// FindMatchable lists a shop's recorded mpesa sales that still have no
	// confirmation receipt, newest first. The matcher picks the first one
	// whose amount fits within tolerance.
	FindMatchable(ctx context.Context, tx *gorm.DB, shopID uint) ([]*model.Sale, error)

	// Claim writes the mpesa receipt and payer details onto a sale, guarded
	// by the receipt still being null. Returns gorm.ErrRecordNotFound when a
	// concurrent matcher already claimed it.
	Claim(ctx context.Context, tx *gorm.DB, saleID uint, receipt, phone, name string) error
}

type saleRepoImpl struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepoImpl{
		db: db,
	}
}

func (r *saleRepoImpl) Create(ctx context.Context, tx *gorm.DB, sale *model.Sale) error {
	return tx.WithContext(ctx).Create(sale).Error
}

func (r *saleRepoImpl) FindByID(ctx context.Context, saleID uint) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.WithContext(ctx).
		Where("id = ?", saleID).
		First(&sale).Error

	if err != nil {
		return nil, err
	}

	return &sale, nil
}

func (r *saleRepoImpl) FindMatchable(ctx context.Context, tx *gorm.DB, shopID uint) ([]*model.Sale, error) {
	var sales []*model.Sale
	err := tx.WithContext(ctx).
		Where(`
			shop_id = ?
			AND payment_method = ?
			AND mpesa_receipt IS NULL
			AND status = ?
		`,
			shopID,
			model.PaymentMethodMpesa,
			model.SaleStatusCompleted,
		).
		Order("created_at DESC").
		Find(&sales).Error

	if err != nil {
		return nil, err
	}

	return sales, nil
}

func (r *saleRepoImpl) Claim(ctx context.Context, tx *gorm.DB, saleID uint, receipt, phone, name string) error {
	result := tx.WithContext(ctx).Model(&model.Sale{}).
		Where("id = ? AND mpesa_receipt IS NULL", saleID).
		Updates(map[string]interface{}{
			"mpesa_receipt":  receipt,
			"customer_phone": phone,
			"customer_name":  name,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
