package repository

import (
	"context"

	"comolor-pos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LicensePaymentRepository interface {
	// Create inserts the approved charge record. MpesaTransactionID is
	// unique, so a double credit for one transaction fails at the storage
	// layer even if every other guard is raced past.
	Create(ctx context.Context, tx *gorm.DB, payment *model.LicensePayment) error

	CountApproved(ctx context.Context) (int64, error)
	SumApprovedAmount(ctx context.Context) (decimal.Decimal, error)
	ListByShop(ctx context.Context, shopID uint) ([]*model.LicensePayment, error)
}

type licensePaymentRepoImpl struct {
	db *gorm.DB
}

func NewLicensePaymentRepository(db *gorm.DB) LicensePaymentRepository {
	return &licensePaymentRepoImpl{
		db: db,
	}
}

func (r *licensePaymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.LicensePayment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *licensePaymentRepoImpl) CountApproved(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LicensePayment{}).
		Where("status = ?", model.LicenseStatusApproved).
		Count(&count).Error

	return count, err
}

func (r *licensePaymentRepoImpl) SumApprovedAmount(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.LicensePayment{}).
		Where("status = ?", model.LicenseStatusApproved).
		Select("SUM(amount)").
		Scan(&total).Error

	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}

	return total.Decimal, nil
}

func (r *licensePaymentRepoImpl) ListByShop(ctx context.Context, shopID uint) ([]*model.LicensePayment, error) {
	var payments []*model.LicensePayment
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Find(&payments).Error

	if err != nil {
		return nil, err
	}

	return payments, nil
}
