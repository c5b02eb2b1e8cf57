package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

// ==================== ShippingOption 接口定义 ====================

// ShippingOptionRepository 固定运费规则仓储
type ShippingOptionRepository interface {
	Create(ctx context.Context, option *model.ShippingOption) error
	GetByID(ctx context.Context, storeID, id int64) (*model.ShippingOption, error)
	GetActiveByID(ctx context.Context, storeID, id int64) (*model.ShippingOption, error)
	ListByStore(ctx context.Context, storeID int64) ([]model.ShippingOption, error)
	ListActiveByStore(ctx context.Context, storeID int64) ([]model.ShippingOption, error)
	UpdateFields(ctx context.Context, storeID, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, storeID, id int64) error
}

// ==================== ShippingOption 实现 ====================

type shippingOptionRepo struct {
	db *gorm.DB
}

// NewShippingOptionRepository 创建固定运费仓储
func NewShippingOptionRepository(db *gorm.DB) ShippingOptionRepository {
	return &shippingOptionRepo{db: db}
}

func (r *shippingOptionRepo) Create(ctx context.Context, option *model.ShippingOption) error {
	return r.db.WithContext(ctx).Create(option).Error
}

func (r *shippingOptionRepo) GetByID(ctx context.Context, storeID, id int64) (*model.ShippingOption, error) {
	var option model.ShippingOption
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&option).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (r *shippingOptionRepo) GetActiveByID(ctx context.Context, storeID, id int64) (*model.ShippingOption, error) {
	var option model.ShippingOption
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ? AND active = ?", id, storeID, true).
		First(&option).Error
	if err != nil {
		return nil, err
	}
	return &option, nil
}

func (r *shippingOptionRepo) ListByStore(ctx context.Context, storeID int64) ([]model.ShippingOption, error) {
	var list []model.ShippingOption
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *shippingOptionRepo) ListActiveByStore(ctx context.Context, storeID int64) ([]model.ShippingOption, error) {
	var list []model.ShippingOption
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND active = ?", storeID, true).
		Order("price_amount ASC").
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *shippingOptionRepo) UpdateFields(ctx context.Context, storeID, id int64, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShippingOption{}).
		Where("id = ? AND store_id = ?", id, storeID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *shippingOptionRepo) Delete(ctx context.Context, storeID, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", id, storeID).
		Delete(&model.ShippingOption{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
