package model

import (
	"time"

	"gorm.io/datatypes"
)

// 网关侧规范化状态
const (
	GatewayStatusPending         = "pending"
	GatewayStatusAwaitingPayment = "awaiting_payment"
	GatewayStatusPaid            = "paid"
	GatewayStatusFailed          = "failed"
	GatewayStatusCancelled       = "cancelled"
)

// ==================== Payment 支付记录 ====================

// Payment 订单支付记录（每个订单一条，首次与网关交互时创建）
type Payment struct {
	BaseModel

	OrderID          int64  `gorm:"uniqueIndex;not null"`
	StoreID          int64  `gorm:"index;not null"`
	Gateway          string `gorm:"size:32;not null;index:idx_payment_gateway_ref"`
	GatewayPaymentID string `gorm:"size:128;index:idx_payment_gateway_ref"`
	GatewayStatus    string `gorm:"size:32"`
	Amount           int64  `gorm:"not null"`
	Currency         string `gorm:"size:10;default:BRL"`
	PaymentURL       string `gorm:"size:1000"`

	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	IdempotencyKey string            `gorm:"size:64;uniqueIndex;not null"`
}

func (*Payment) TableName() string {
	return "payments"
}

// ==================== WebhookJob 网关回调任务 ====================

// WebhookJob 状态
const (
	WebhookJobPending = "pending"
	WebhookJobDone    = "done"
	WebhookJobDead    = "dead"
)

// WebhookJob 已解析的网关回调，由后台 worker 处理
type WebhookJob struct {
	BaseModel

	Gateway          string            `gorm:"size:32;not null"`
	GatewayPaymentID string            `gorm:"size:128;not null"`
	StoreID          int64             `gorm:"index;default:0"` // 回调地址携带的店铺，可能为 0
	Status           string            `gorm:"size:32;not null"`
	DedupKey         string            `gorm:"size:255;uniqueIndex;not null"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`

	State     string     `gorm:"size:16;index;default:pending"`
	Attempts  int        `gorm:"default:0"`
	LastError string     `gorm:"type:text"`
	NextRunAt *time.Time `gorm:"index"`
}

func (*WebhookJob) TableName() string {
	return "webhook_jobs"
}

// WebhookDedupKey 回调去重键；eventID 为网关通知 ID，可为空
func WebhookDedupKey(gateway, paymentID, status string, eventID ...string) string {
	key := gateway + ":" + paymentID + ":" + status
	if len(eventID) > 0 && eventID[0] != "" {
		key += ":" + eventID[0]
	}
	return key
}
