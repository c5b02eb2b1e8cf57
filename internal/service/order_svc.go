package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/logger"
)

// ==================== OrderService ====================

// OrderService 订单查询与状态机
type OrderService struct {
	uow      *repository.OrderUnitOfWork
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	events   *EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(
	uow *repository.OrderUnitOfWork,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	events *EventPublisher,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		uow:      uow,
		orders:   orders,
		payments: payments,
		events:   events,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// ==================== 订单列表 ====================

// ListOrders 获取订单列表
func (s *OrderService) ListOrders(ctx context.Context, storeID int64, req *dto.ListOrdersRequest) (*dto.ListOrdersResponse, error) {
	filter := repository.OrderFilter{
		StoreID:        storeID,
		PaymentStatus:  req.PaymentStatus,
		DeliveryStatus: req.DeliveryStatus,
		Keyword:        req.Keyword,
		Page:           req.Page,
		PageSize:       req.PageSize,
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("查询订单列表失败: %w", err)
	}

	list := make([]dto.OrderListItem, len(orders))
	for i, order := range orders {
		itemCount := 0
		for _, item := range order.Items {
			itemCount += item.Quantity
		}
		list[i] = dto.OrderListItem{
			ID:             order.ID,
			OrderNumber:    order.OrderNumber,
			CustomerName:   order.CustomerName,
			CustomerEmail:  order.CustomerEmail,
			ItemCount:      itemCount,
			Total:          order.GetTotal(),
			PaymentStatus:  order.PaymentStatus,
			DeliveryStatus: order.DeliveryStatus,
			PaymentMethod:  order.PaymentMethod,
			CreatedAt:      order.CreatedAt,
		}
	}

	return &dto.ListOrdersResponse{
		Total: total,
		List:  list,
	}, nil
}

// ==================== 订单详情 ====================

// GetOrderDetail 获取订单详情
func (s *OrderService) GetOrderDetail(ctx context.Context, storeID, orderID int64) (*dto.OrderDetailResponse, error) {
	order, err := s.orders.GetByID(ctx, storeID, orderID)
	if err != nil {
		return nil, notFoundAs(err, ErrOrderNotFound)
	}

	resp := &dto.OrderDetailResponse{
		Order:         toOrderVO(order),
		Items:         toOrderItemVOs(order.Items),
		StatusHistory: toStatusHistoryVOs(order.StatusHistory),
	}

	payment, err := s.payments.GetByOrderID(ctx, storeID, order.ID)
	if err == nil {
		resp.Payment = toPaymentVO(payment)
	} else if !IsNotFound(err) {
		return nil, err
	}
	return resp, nil
}

// GetPublicStatus 按订单号公开查询（限定当前店铺）
func (s *OrderService) GetPublicStatus(ctx context.Context, storeID int64, orderNumber string) (*dto.PublicOrderStatusResponse, error) {
	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, notFoundAs(err, ErrOrderNotFound)
	}
	if order.StoreID != storeID {
		return nil, ErrOrderNotFound
	}

	items := make([]dto.PublicOrderItemVO, len(order.Items))
	for i, item := range order.Items {
		items[i] = dto.PublicOrderItemVO{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Total:       item.GetTotalPrice(),
		}
	}

	return &dto.PublicOrderStatusResponse{
		OrderNumber:    order.OrderNumber,
		PaymentStatus:  order.PaymentStatus,
		DeliveryStatus: order.DeliveryStatus,
		Total:          order.GetTotal(),
		Items:          items,
		StatusHistory:  toStatusHistoryVOs(order.StatusHistory),
		CreatedAt:      order.CreatedAt,
	}, nil
}

// ==================== 状态流转 ====================

// UpdatePaymentStatus 修改支付状态；相同状态为空操作，变为 paid 时额外发出支付确认事件
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, storeID, orderID int64, status string) (*model.Order, error) {
	if !model.ValidPaymentStatus(status) {
		return nil, ErrInvalidStatus
	}

	var order *model.Order
	err := s.uow.Transaction(ctx, func(uow *repository.OrderUnitOfWork) error {
		updated, _, err := s.applyPaymentStatus(ctx, uow, storeID, orderID, status)
		order = updated
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// MarkAsPaid 已支付时不追加历史、不重复发事件
func (s *OrderService) MarkAsPaid(ctx context.Context, storeID, orderID int64) (*model.Order, error) {
	return s.UpdatePaymentStatus(ctx, storeID, orderID, model.PaymentStatusPaid)
}

// UpdateDeliveryStatus 修改配送状态
func (s *OrderService) UpdateDeliveryStatus(ctx context.Context, storeID, orderID int64, status string) (*model.Order, error) {
	if !model.ValidDeliveryStatus(status) {
		return nil, ErrInvalidStatus
	}

	var order *model.Order
	err := s.uow.Transaction(ctx, func(uow *repository.OrderUnitOfWork) error {
		locked, err := uow.Orders.LockByID(ctx, storeID, orderID)
		if err != nil {
			return notFoundAs(err, ErrOrderNotFound)
		}
		order = locked

		from := locked.DeliveryStatus
		if from == status {
			return nil
		}
		if !model.CanTransitDelivery(from, status) {
			return ErrInvalidTransition
		}

		locked.DeliveryStatus = status
		locked.AddStatusHistory(model.HistoryTypeDelivery, status, s.now())
		if err := uow.Orders.UpdateFields(ctx, storeID, orderID, map[string]interface{}{
			"delivery_status": status,
			"status_history":  locked.StatusHistory,
		}); err != nil {
			return err
		}
		return s.events.StatusChanged(ctx, uow.Outbox, locked, model.HistoryTypeDelivery, from, status)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("[Order] 配送状态已更新",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.DeliveryStatus),
	)
	return order, nil
}

// CancelOrder 未付款且未发货的订单可取消，支付与配送状态同时置为 cancelled
func (s *OrderService) CancelOrder(ctx context.Context, storeID, orderID int64) (*model.Order, error) {
	var order *model.Order
	err := s.uow.Transaction(ctx, func(uow *repository.OrderUnitOfWork) error {
		locked, err := uow.Orders.LockByID(ctx, storeID, orderID)
		if err != nil {
			return notFoundAs(err, ErrOrderNotFound)
		}
		order = locked

		if !locked.CanCancel() {
			return ErrOrderNotCancellable
		}

		fromPayment, fromDelivery := locked.PaymentStatus, locked.DeliveryStatus
		now := s.now()
		locked.PaymentStatus = model.PaymentStatusCancelled
		locked.DeliveryStatus = model.DeliveryStatusCancelled
		locked.AddStatusHistory(model.HistoryTypePayment, model.PaymentStatusCancelled, now)
		locked.AddStatusHistory(model.HistoryTypeDelivery, model.DeliveryStatusCancelled, now)

		if err := uow.Orders.UpdateFields(ctx, storeID, orderID, map[string]interface{}{
			"payment_status":  locked.PaymentStatus,
			"delivery_status": locked.DeliveryStatus,
			"status_history":  locked.StatusHistory,
		}); err != nil {
			return err
		}
		if err := s.events.StatusChanged(ctx, uow.Outbox, locked, model.HistoryTypePayment, fromPayment, locked.PaymentStatus); err != nil {
			return err
		}
		return s.events.StatusChanged(ctx, uow.Outbox, locked, model.HistoryTypeDelivery, fromDelivery, locked.DeliveryStatus)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("[Order] 订单已取消", zap.String("order_number", order.OrderNumber))
	return order, nil
}

// applyPaymentStatus 事务内执行支付状态流转，返回是否实际发生变更
func (s *OrderService) applyPaymentStatus(ctx context.Context, uow *repository.OrderUnitOfWork, storeID, orderID int64, status string) (*model.Order, bool, error) {
	order, err := uow.Orders.LockByID(ctx, storeID, orderID)
	if err != nil {
		return nil, false, notFoundAs(err, ErrOrderNotFound)
	}

	from := order.PaymentStatus
	if from == status {
		return order, false, nil
	}
	if !model.CanTransitPayment(from, status) {
		return nil, false, ErrInvalidTransition
	}

	order.PaymentStatus = status
	order.AddStatusHistory(model.HistoryTypePayment, status, s.now())
	if err := uow.Orders.UpdateFields(ctx, storeID, orderID, map[string]interface{}{
		"payment_status": status,
		"status_history": order.StatusHistory,
	}); err != nil {
		return nil, false, err
	}

	if status == model.PaymentStatusPaid {
		if err := s.events.PaymentConfirmed(ctx, uow.Outbox, order); err != nil {
			return nil, false, err
		}
	}
	if err := s.events.StatusChanged(ctx, uow.Outbox, order, model.HistoryTypePayment, from, status); err != nil {
		return nil, false, err
	}

	s.log.Info("[Order] 支付状态已更新",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", from),
		zap.String("to", status),
	)
	return order, true, nil
}

// ==================== 转换 ====================

func toOrderVO(order *model.Order) *dto.OrderVO {
	return &dto.OrderVO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		Subtotal:        order.GetSubtotal(),
		ShippingCost:    order.GetShipping(),
		ShippingMethod:  order.ShippingMethod,
		Total:           order.GetTotal(),
		PaymentStatus:   order.PaymentStatus,
		DeliveryStatus:  order.DeliveryStatus,
		PaymentMethod:   order.PaymentMethod,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func toOrderItemVOs(items []model.OrderItem) []dto.OrderItemVO {
	list := make([]dto.OrderItemVO, len(items))
	for i, item := range items {
		list[i] = dto.OrderItemVO{
			ID:            item.ID,
			ProductID:     item.ProductID,
			VariationID:   item.ProductVariationID,
			ProductName:   item.ProductName,
			VariationName: item.VariationName,
			Quantity:      item.Quantity,
			UnitPrice:     item.GetPrice(),
			Total:         item.GetTotalPrice(),
		}
	}
	return list
}

func toStatusHistoryVOs(history []model.StatusHistoryEntry) []dto.StatusHistoryVO {
	list := make([]dto.StatusHistoryVO, len(history))
	for i, entry := range history {
		list[i] = dto.StatusHistoryVO{
			Type:      entry.Type,
			Status:    entry.Status,
			Timestamp: entry.Timestamp,
		}
	}
	return list
}

func toPaymentVO(payment *model.Payment) *dto.PaymentVO {
	return &dto.PaymentVO{
		Gateway:    payment.Gateway,
		PaymentID:  payment.GatewayPaymentID,
		PaymentURL: payment.PaymentURL,
		Status:     payment.GatewayStatus,
		Amount:     model.CentsToFloat(payment.Amount),
		Currency:   payment.Currency,
	}
}
