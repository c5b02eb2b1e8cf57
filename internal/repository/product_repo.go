package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

// ==================== ProductRepository 商品仓储 ====================

// ProductRepository 商品/变体只读访问与库存扣减
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	CreateVariation(ctx context.Context, variation *model.ProductVariation) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetVariation(ctx context.Context, productID, variationID int64) (*model.ProductVariation, error)

	// 事务内使用
	LockByID(ctx context.Context, id int64) (*model.Product, error)
	LockVariation(ctx context.Context, id int64) (*model.ProductVariation, error)
	DecrementStock(ctx context.Context, id int64, qty int) (bool, error)
	DecrementVariationStock(ctx context.Context, id int64, qty int) (bool, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) CreateVariation(ctx context.Context, variation *model.ProductVariation) error {
	return r.db.WithContext(ctx).Create(variation).Error
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) GetVariation(ctx context.Context, productID, variationID int64) (*model.ProductVariation, error) {
	var variation model.ProductVariation
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variationID, productID).
		First(&variation).Error
	if err != nil {
		return nil, err
	}
	return &variation, nil
}

func (r *productRepository) LockByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := forUpdate(r.db.WithContext(ctx)).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) LockVariation(ctx context.Context, id int64) (*model.ProductVariation, error) {
	var variation model.ProductVariation
	if err := forUpdate(r.db.WithContext(ctx)).First(&variation, id).Error; err != nil {
		return nil, err
	}
	return &variation, nil
}

// DecrementStock 条件扣减，库存不足时返回 false，库存永不为负
func (r *productRepository) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	return result.RowsAffected == 1, result.Error
}

func (r *productRepository) DecrementVariationStock(ctx context.Context, id int64, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ProductVariation{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	return result.RowsAffected == 1, result.Error
}
