package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

// ==================== StoreRepository 店铺仓储 ====================

// StoreRepository 租户解析只返回营业中的店铺
type StoreRepository interface {
	Create(ctx context.Context, store *model.Store) error
	GetActiveByID(ctx context.Context, id int64) (*model.Store, error)
	GetActiveBySlug(ctx context.Context, slug string) (*model.Store, error)
	GetActiveByDomain(ctx context.Context, domain string) (*model.Store, error)
	GetByID(ctx context.Context, id int64) (*model.Store, error)
}

type storeRepository struct {
	db *gorm.DB
}

// NewStoreRepository 创建店铺仓储
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepository{db: db}
}

func (r *storeRepository) Create(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *storeRepository) GetByID(ctx context.Context, id int64) (*model.Store, error) {
	var store model.Store
	if err := r.db.WithContext(ctx).First(&store, id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) GetActiveByID(ctx context.Context, id int64) (*model.Store, error) {
	var store model.Store
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.StoreStatusActive).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) GetActiveBySlug(ctx context.Context, slug string) (*model.Store, error) {
	var store model.Store
	err := r.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, model.StoreStatusActive).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepository) GetActiveByDomain(ctx context.Context, domain string) (*model.Store, error) {
	var store model.Store
	err := r.db.WithContext(ctx).
		Joins("JOIN store_domains ON store_domains.store_id = stores.id AND store_domains.deleted_at IS NULL").
		Where("store_domains.domain = ? AND stores.status = ?", strings.ToLower(domain), model.StoreStatusActive).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}
