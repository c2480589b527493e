package repository

import (
	"context"
	"time"

	"comolor-pos/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ShopRepository interface {
	Create(ctx context.Context, shop *model.Shop) error
	FindByID(ctx context.Context, shopID uint) (*model.Shop, error)
	FindByTillNumber(ctx context.Context, tillNumber string) (*model.Shop, error)
	FindByPhone(ctx context.Context, phone string) (*model.Shop, error)

	// ActivateLicense flips the shop active and moves its expiry to the end
	// of the new license window.
	ActivateLicense(ctx context.Context, tx *gorm.DB, shopID uint, expires time.Time) error

	UpdateSettings(ctx context.Context, shopID uint, settings datatypes.JSONMap) error
}

type shopRepoImpl struct {
	db *gorm.DB
}

func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepoImpl{
		db: db,
	}
}

func (r *shopRepoImpl) Create(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *shopRepoImpl) FindByID(ctx context.Context, shopID uint) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).
		Where("id = ?", shopID).
		First(&shop).Error

	if err != nil {
		return nil, err
	}

	return &shop, nil
}

func (r *shopRepoImpl) FindByTillNumber(ctx context.Context, tillNumber string) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).
		Where("till_number = ?", tillNumber).
		First(&shop).Error

	if err != nil {
		return nil, err
	}

	return &shop, nil
}

func (r *shopRepoImpl) FindByPhone(ctx context.Context, phone string) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&shop).Error

	if err != nil {
		return nil, err
	}

	return &shop, nil
}

func (r *shopRepoImpl) ActivateLicense(ctx context.Context, tx *gorm.DB, shopID uint, expires time.Time) error {
	result := tx.WithContext(ctx).Model(&model.Shop{}).
		Where("id = ?", shopID).
		Updates(map[string]interface{}{
			"is_active":       true,
			"license_expires": expires,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *shopRepoImpl) UpdateSettings(ctx context.Context, shopID uint, settings datatypes.JSONMap) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).
		Where("id = ?", shopID).
		Update("settings", settings).Error
}
