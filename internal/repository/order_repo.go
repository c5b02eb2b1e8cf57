package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

// ==================== 过滤条件 ====================

// OrderFilter 订单过滤条件
// MaxOrderPageSize 单页订单数上限
const MaxOrderPageSize = 100

type OrderFilter struct {
	StoreID        int64
	PaymentStatus  string
	DeliveryStatus string
	Keyword        string
	Page           int
	PageSize       int
}

// ==================== OrderRepository 订单仓库 ====================

// OrderRepository 订单仓库接口，按店铺隔离
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	CreateItems(ctx context.Context, items []model.OrderItem) error
	GetByID(ctx context.Context, storeID, id int64) (*model.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	LockByID(ctx context.Context, storeID, id int64) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	UpdateFields(ctx context.Context, storeID, id int64, fields map[string]interface{}) error
}

// ==================== 实现 ====================

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *orderRepository) CreateItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *orderRepository) GetByID(ctx context.Context, storeID, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, storeID, id int64) (*model.Order, error) {
	var order model.Order
	err := forUpdate(r.db.WithContext(ctx)).
		Where("id = ? AND store_id = ?", id, storeID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{}).Where("store_id = ?", filter.StoreID)

	// 应用过滤条件
	if filter.PaymentStatus != "" {
		db = db.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.DeliveryStatus != "" {
		db = db.Where("delivery_status = ?", filter.DeliveryStatus)
	}
	if filter.Keyword != "" {
		keyword := "%" + filter.Keyword + "%"
		db = db.Where("order_number LIKE ? OR customer_name LIKE ? OR customer_email LIKE ?",
			keyword, keyword, keyword)
	}

	// 计算总数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 15
	}
	if filter.PageSize > MaxOrderPageSize {
		filter.PageSize = MaxOrderPageSize
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := db.
		Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&orders).Error

	return orders, total, err
}

func (r *orderRepository) UpdateFields(ctx context.Context, storeID, id int64, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
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
