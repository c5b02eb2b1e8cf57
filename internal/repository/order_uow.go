package repository

import (
	"context"

	"gorm.io/gorm"
)

// OrderUnitOfWork 订单工作单元（事务）
// 结账、状态流转与回调处理共用，保证业务写入与发件箱事件同事务提交
type OrderUnitOfWork struct {
	db       *gorm.DB
	Carts    CartRepository
	Products ProductRepository
	Orders   OrderRepository
	Payments PaymentRepository
	Outbox   OutboxRepository
}

// NewOrderUnitOfWork 创建工作单元
func NewOrderUnitOfWork(db *gorm.DB) *OrderUnitOfWork {
	return newOrderUnitOfWork(db)
}

func newOrderUnitOfWork(db *gorm.DB) *OrderUnitOfWork {
	return &OrderUnitOfWork{
		db:       db,
		Carts:    NewCartRepository(db),
		Products: NewProductRepository(db),
		Orders:   NewOrderRepository(db),
		Payments: NewPaymentRepository(db),
		Outbox:   NewOutboxRepository(db),
	}
}

// Transaction 执行事务，fn 返回错误时整体回滚
func (u *OrderUnitOfWork) Transaction(ctx context.Context, fn func(uow *OrderUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newOrderUnitOfWork(tx))
	})
}
