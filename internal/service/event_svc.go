package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/kafka"
	"storefront_checkout/pkg/logger"
)

// OrderEvent 订单领域事件载荷
type OrderEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	StoreID     int64     `json:"store_id"`
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	OccurredAt  time.Time `json:"occurred_at"`

	Total         float64 `json:"total,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`

	// order.status_changed
	StatusType string `json:"status_type,omitempty"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
}

// ==================== EventPublisher 发件箱写入 ====================

// EventPublisher 在业务事务内写入发件箱，提交成功才会被投递
type EventPublisher struct {
	now func() time.Time
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{now: time.Now}
}

// OrderCreated 订单创建
func (p *EventPublisher) OrderCreated(ctx context.Context, outbox repository.OutboxRepository, order *model.Order) error {
	evt := p.base(model.TopicOrderCreated, order)
	evt.Total = order.GetTotal()
	evt.PaymentMethod = order.PaymentMethod
	return p.write(ctx, outbox, evt)
}

// StatusChanged 支付/配送状态变更
func (p *EventPublisher) StatusChanged(ctx context.Context, outbox repository.OutboxRepository, order *model.Order, statusType, from, to string) error {
	evt := p.base(model.TopicOrderStatusChanged, order)
	evt.StatusType = statusType
	evt.FromStatus = from
	evt.ToStatus = to
	return p.write(ctx, outbox, evt)
}

// PaymentConfirmed 支付确认
func (p *EventPublisher) PaymentConfirmed(ctx context.Context, outbox repository.OutboxRepository, order *model.Order) error {
	evt := p.base(model.TopicPaymentConfirmed, order)
	evt.Total = order.GetTotal()
	evt.PaymentMethod = order.PaymentMethod
	return p.write(ctx, outbox, evt)
}

func (p *EventPublisher) base(topic string, order *model.Order) *OrderEvent {
	return &OrderEvent{
		EventID:     uuid.NewString(),
		Type:        topic,
		StoreID:     order.StoreID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OccurredAt:  p.now().UTC(),
	}
}

func (p *EventPublisher) write(ctx context.Context, outbox repository.OutboxRepository, evt *OrderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("事件序列化失败: %w", err)
	}
	return outbox.Insert(ctx, &model.OutboxEvent{
		EventID:      evt.EventID,
		Topic:        evt.Type,
		PartitionKey: evt.OrderNumber,
		Payload:      payload,
		CreatedAt:    evt.OccurredAt,
	})
}

// DecodeOrderEvent 解析发件箱载荷
func DecodeOrderEvent(record *model.OutboxEvent) (*OrderEvent, error) {
	var evt OrderEvent
	if err := json.Unmarshal(record.Payload, &evt); err != nil {
		return nil, fmt.Errorf("事件解析失败: %w", err)
	}
	return &evt, nil
}

// ==================== EventHandler 事件消费者 ====================

// EventHandler 发件箱事件消费者，需幂等（投递至少一次）
type EventHandler interface {
	Name() string
	Handles(topic string) bool
	Handle(ctx context.Context, record *model.OutboxEvent) error
}

// KafkaEventHandler 转发到 Kafka
type KafkaEventHandler struct {
	client *kafka.Client
}

func NewKafkaEventHandler(client *kafka.Client) *KafkaEventHandler {
	return &KafkaEventHandler{client: client}
}

func (h *KafkaEventHandler) Name() string { return "kafka" }

func (h *KafkaEventHandler) Handles(string) bool { return h.client.Enabled() }

func (h *KafkaEventHandler) Handle(ctx context.Context, record *model.OutboxEvent) error {
	return h.client.Publish(ctx, record.Topic, record.PartitionKey, record.Payload)
}

// ActivityLogHandler 记录订单活动日志
type ActivityLogHandler struct {
	log *zap.Logger
}

func NewActivityLogHandler(log *zap.Logger) *ActivityLogHandler {
	return &ActivityLogHandler{log: logger.OrNop(log)}
}

func (h *ActivityLogHandler) Name() string { return "activity_log" }

func (h *ActivityLogHandler) Handles(string) bool { return true }

func (h *ActivityLogHandler) Handle(_ context.Context, record *model.OutboxEvent) error {
	evt, err := DecodeOrderEvent(record)
	if err != nil {
		return err
	}
	h.log.Info("[OrderActivity] "+evt.Type,
		zap.Int64("store_id", evt.StoreID),
		zap.Int64("order_id", evt.OrderID),
		zap.String("order_number", evt.OrderNumber),
		zap.String("status_type", evt.StatusType),
		zap.String("from", evt.FromStatus),
		zap.String("to", evt.ToStatus),
	)
	return nil
}

// StoreWhatsAppNotifier 新订单通知店主（生成 wa.me 链接）
type StoreWhatsAppNotifier struct {
	stores   repository.StoreRepository
	orders   repository.OrderRepository
	whatsapp *WhatsAppService
	log      *zap.Logger
}

func NewStoreWhatsAppNotifier(
	stores repository.StoreRepository,
	orders repository.OrderRepository,
	whatsapp *WhatsAppService,
	log *zap.Logger,
) *StoreWhatsAppNotifier {
	return &StoreWhatsAppNotifier{
		stores:   stores,
		orders:   orders,
		whatsapp: whatsapp,
		log:      logger.OrNop(log),
	}
}

func (h *StoreWhatsAppNotifier) Name() string { return "whatsapp_notifier" }

func (h *StoreWhatsAppNotifier) Handles(topic string) bool {
	return topic == model.TopicOrderCreated
}

func (h *StoreWhatsAppNotifier) Handle(ctx context.Context, record *model.OutboxEvent) error {
	evt, err := DecodeOrderEvent(record)
	if err != nil {
		return err
	}

	store, err := h.stores.GetByID(ctx, evt.StoreID)
	if err != nil {
		return fmt.Errorf("读取店铺失败: %w", err)
	}
	order, err := h.orders.GetByID(ctx, evt.StoreID, evt.OrderID)
	if err != nil {
		return fmt.Errorf("读取订单失败: %w", err)
	}

	link := h.whatsapp.OrderLink(store, order)
	if link == "" {
		h.log.Info("[WhatsApp] 店铺未配置 WhatsApp，跳过通知", zap.Int64("store_id", store.ID))
		return nil
	}

	h.log.Info("[WhatsApp] 新订单通知已生成",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("store_id", store.ID),
		zap.String("whatsapp_link", link),
	)
	return nil
}
