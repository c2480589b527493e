package repository

import (
	"context"
	"time"

	"comolor-pos/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error

	// ChangedSince feeds the sync channel: products at a shop mutated after
	// the client's last sync point.
	ChangedSince(ctx context.Context, shopID uint, since time.Time) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepoImpl) ChangedSince(ctx context.Context, shopID uint, since time.Time) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND updated_at > ?", shopID, since).
		Find(&products).Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
