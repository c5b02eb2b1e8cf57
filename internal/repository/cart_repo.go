package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_checkout/internal/model"
)

// CartIdentity 购物车身份：UserID 优先，否则 SessionID
type CartIdentity struct {
	SessionID string
	UserID    int64
}

// IsZero 无任何身份
func (i CartIdentity) IsZero() bool {
	return i.SessionID == "" && i.UserID == 0
}

// ==================== CartRepository 购物车仓储 ====================

// CartRepository 购物车仓储，所有查询限定在店铺内
type CartRepository interface {
	FindOrCreate(ctx context.Context, storeID int64, identity CartIdentity) (*model.Cart, error)
	GetWithItems(ctx context.Context, storeID, cartID int64) (*model.Cart, error)
	LockWithItems(ctx context.Context, storeID, cartID int64) (*model.Cart, error)

	GetItem(ctx context.Context, cartID, itemID int64) (*model.CartItem, error)
	CreateItem(ctx context.Context, item *model.CartItem) error
	UpdateItemQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	IncrementItemQuantity(ctx context.Context, cartID, itemID int64, delta int) error
	DeleteItem(ctx context.Context, cartID, itemID int64) error
	ClearItems(ctx context.Context, cartID int64) error
	DeleteItems(ctx context.Context, cartID int64, itemIDs []int64) error
}

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) identityScope(db *gorm.DB, storeID int64, identity CartIdentity) *gorm.DB {
	db = db.Where("store_id = ?", storeID)
	if identity.UserID > 0 {
		return db.Where("user_id = ?", identity.UserID)
	}
	return db.Where("session_id = ?", identity.SessionID)
}

// FindOrCreate 查找或创建；并发创建由唯一索引兜底，冲突时回读
func (r *cartRepository) FindOrCreate(ctx context.Context, storeID int64, identity CartIdentity) (*model.Cart, error) {
	var cart model.Cart
	err := r.identityScope(r.db.WithContext(ctx), storeID, identity).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	cart = model.Cart{StoreID: storeID}
	if identity.UserID > 0 {
		userID := identity.UserID
		cart.UserID = &userID
	} else {
		sessionID := identity.SessionID
		cart.SessionID = &sessionID
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&cart).Error; err != nil {
		return nil, err
	}
	if cart.ID > 0 {
		return &cart, nil
	}

	var existing model.Cart
	if err := r.identityScope(r.db.WithContext(ctx), storeID, identity).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *cartRepository) GetWithItems(ctx context.Context, storeID, cartID int64) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Preload("Items.Variation").
		Where("id = ? AND store_id = ?", cartID, storeID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) LockWithItems(ctx context.Context, storeID, cartID int64) (*model.Cart, error) {
	var cart model.Cart
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND store_id = ?", cartID, storeID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Preload("Product").
		Preload("Variation").
		Where("cart_id = ?", cart.ID).
		Order("id ASC").
		Find(&cart.Items).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) GetItem(ctx context.Context, cartID, itemID int64) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) CreateItem(ctx context.Context, item *model.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Update("quantity", qty)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementItemQuantity 原子累加数量（合并同款商品行）
func (r *cartRepository) IncrementItemQuantity(ctx context.Context, cartID, itemID int64, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID int64) error {
	result := r.db.WithContext(ctx).
		Unscoped().
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&model.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearItems 清空购物车（物理删除）
func (r *cartRepository) ClearItems(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Where("cart_id = ?", cartID).
		Delete(&model.CartItem{}).Error
}

// DeleteItems 按条目 ID 删除（物理删除）
func (r *cartRepository) DeleteItems(ctx context.Context, cartID int64, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Unscoped().
		Where("cart_id = ? AND id IN ?", cartID, itemIDs).
		Delete(&model.CartItem{}).Error
}
