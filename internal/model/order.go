package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 订单状态常量 ====================

// PaymentStatus 支付状态
const (
	PaymentStatusPending         = "pending"          // 待支付
	PaymentStatusAwaitingPayment = "awaiting_payment" // 等待付款确认
	PaymentStatusPaid            = "paid"             // 已支付
	PaymentStatusCancelled       = "cancelled"        // 已取消
	PaymentStatusRefunded        = "refunded"         // 已退款
)

// DeliveryStatus 配送状态
const (
	DeliveryStatusPending    = "pending"    // 待处理
	DeliveryStatusProcessing = "processing" // 备货中
	DeliveryStatusShipped    = "shipped"    // 已发货
	DeliveryStatusDelivered  = "delivered"  // 已签收
	DeliveryStatusCancelled  = "cancelled"  // 已取消
)

// 状态历史类型
const (
	HistoryTypePayment  = "payment"
	HistoryTypeDelivery = "delivery"
)

// 支付方式
const (
	PaymentMethodStripe      = "stripe"
	PaymentMethodMercadoPago = "mercadopago"
	PaymentMethodWhatsApp    = "whatsapp"
)

// ValidPaymentStatus 合法的支付状态
func ValidPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusPending, PaymentStatusAwaitingPayment, PaymentStatusPaid,
		PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// ValidDeliveryStatus 合法的配送状态
func ValidDeliveryStatus(status string) bool {
	switch status {
	case DeliveryStatusPending, DeliveryStatusProcessing, DeliveryStatusShipped,
		DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	}
	return false
}

// CanTransitPayment 支付状态流转规则
// pending -> awaiting_payment | paid | cancelled
// awaiting_payment -> paid | cancelled
// paid -> refunded
func CanTransitPayment(from, to string) bool {
	switch from {
	case PaymentStatusPending:
		return to == PaymentStatusAwaitingPayment || to == PaymentStatusPaid || to == PaymentStatusCancelled
	case PaymentStatusAwaitingPayment:
		return to == PaymentStatusPaid || to == PaymentStatusCancelled
	case PaymentStatusPaid:
		return to == PaymentStatusRefunded
	}
	return false
}

var deliveryRank = map[string]int{
	DeliveryStatusPending:    0,
	DeliveryStatusProcessing: 1,
	DeliveryStatusShipped:    2,
	DeliveryStatusDelivered:  3,
}

// CanTransitDelivery 配送状态只能前进；签收前任意阶段可取消
func CanTransitDelivery(from, to string) bool {
	if from == DeliveryStatusDelivered || from == DeliveryStatusCancelled {
		return false
	}
	if to == DeliveryStatusCancelled {
		return true
	}
	fromRank, ok1 := deliveryRank[from]
	toRank, ok2 := deliveryRank[to]
	return ok1 && ok2 && toRank > fromRank
}

// ==================== Order 订单 ====================

// StatusHistoryEntry 状态变更记录（只追加）
type StatusHistoryEntry struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Order 订单，创建后仅支付/配送状态与历史可变
type Order struct {
	BaseModel

	StoreID     int64  `gorm:"index:idx_order_store_payment;not null"`
	OrderNumber string `gorm:"size:64;uniqueIndex;not null"`

	// 客户信息
	CustomerName  string `gorm:"size:255;not null"`
	CustomerEmail string `gorm:"size:255"`
	CustomerPhone string `gorm:"size:32"`

	// 收货地址（PostgreSQL JSONB）
	ShippingAddress datatypes.JSONMap `gorm:"type:jsonb"`

	// 金额（分为单位存储）
	SubtotalAmount int64  `gorm:"not null"`
	ShippingAmount int64  `gorm:"not null;default:0"`
	TotalAmount    int64  `gorm:"not null"`
	ShippingMethod string `gorm:"size:255"`

	// 状态
	PaymentStatus  string `gorm:"size:32;index:idx_order_store_payment;default:pending"`
	DeliveryStatus string `gorm:"size:32;default:pending"`
	PaymentMethod  string `gorm:"size:32"`

	StatusHistory datatypes.JSONSlice[StatusHistoryEntry] `gorm:"type:jsonb"`
	Notes         string                                  `gorm:"type:text"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

func (*Order) TableName() string {
	return "orders"
}

// GetSubtotal 获取小计金额（元）
func (o *Order) GetSubtotal() float64 {
	return CentsToFloat(o.SubtotalAmount)
}

// GetShipping 获取运费（元）
func (o *Order) GetShipping() float64 {
	return CentsToFloat(o.ShippingAmount)
}

// GetTotal 获取总金额（元）
func (o *Order) GetTotal() float64 {
	return CentsToFloat(o.TotalAmount)
}

// AddStatusHistory 追加状态历史
func (o *Order) AddStatusHistory(historyType, status string, at time.Time) {
	o.StatusHistory = append(o.StatusHistory, StatusHistoryEntry{
		Type:      historyType,
		Status:    status,
		Timestamp: at.UTC(),
	})
}

// LastHistoryStatus 某类型最后一条历史状态
func (o *Order) LastHistoryStatus(historyType string) (string, bool) {
	for i := len(o.StatusHistory) - 1; i >= 0; i-- {
		if o.StatusHistory[i].Type == historyType {
			return o.StatusHistory[i].Status, true
		}
	}
	return "", false
}

// CountHistory 统计某类型某状态的历史条数
func (o *Order) CountHistory(historyType, status string) int {
	n := 0
	for _, entry := range o.StatusHistory {
		if entry.Type == historyType && entry.Status == status {
			n++
		}
	}
	return n
}

// CanCancel 检查是否可以取消
func (o *Order) CanCancel() bool {
	paymentOK := o.PaymentStatus == PaymentStatusPending || o.PaymentStatus == PaymentStatusAwaitingPayment
	deliveryOK := o.DeliveryStatus == DeliveryStatusPending || o.DeliveryStatus == DeliveryStatusProcessing
	return paymentOK && deliveryOK
}

// GetShippingAddressField 获取收货地址字段
func (o *Order) GetShippingAddressField(key string) string {
	if o.ShippingAddress == nil {
		return ""
	}
	if v, ok := o.ShippingAddress[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ==================== OrderItem 订单项 ====================

// OrderItem 下单时的商品快照
type OrderItem struct {
	BaseModel

	OrderID            int64 `gorm:"index;not null"`
	ProductID          int64 `gorm:"index"`
	ProductVariationID *int64
	ProductName        string `gorm:"size:255;not null"`
	VariationName      string `gorm:"size:255"`
	Quantity           int    `gorm:"not null"`
	UnitPriceAmount    int64  `gorm:"not null"`
	TotalAmount        int64  `gorm:"not null"`
}

func (*OrderItem) TableName() string {
	return "order_items"
}

// GetPrice 获取单价（元）
func (i *OrderItem) GetPrice() float64 {
	return CentsToFloat(i.UnitPriceAmount)
}

// GetTotalPrice 获取总价（元）
func (i *OrderItem) GetTotalPrice() float64 {
	return CentsToFloat(i.TotalAmount)
}
