package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

// PaymentRepository 支付记录仓储
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByOrderID(ctx context.Context, storeID, orderID int64) (*model.Payment, error)
	GetByGatewayRef(ctx context.Context, gateway, gatewayPaymentID string) (*model.Payment, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付记录仓储
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) GetByOrderID(ctx context.Context, storeID, orderID int64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND store_id = ?", orderID, storeID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) GetByGatewayRef(ctx context.Context, gateway, gatewayPaymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := forUpdate(r.db.WithContext(ctx)).
		Where("gateway = ? AND gateway_payment_id = ?", gateway, gatewayPaymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(fields).Error
}
