package model

import (
	"time"

	"gorm.io/datatypes"
)

// 领域事件主题
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicPaymentConfirmed   = "payment.confirmed"
)

// OutboxEvent 事务内写入、由 relay 任务异步投递的事件
type OutboxEvent struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	EventID      string         `gorm:"size:64;uniqueIndex;not null"`
	Topic        string         `gorm:"size:64;index;not null"`
	PartitionKey string         `gorm:"size:128;index"`
	Payload      datatypes.JSON `gorm:"type:jsonb"`
	Attempts     int            `gorm:"default:0"`
	LastError    string         `gorm:"type:text"`
	CreatedAt    time.Time
	SentAt       *time.Time `gorm:"index"`

	// 重试退避：早于该时间不再读取
	NextAttemptAt *time.Time `gorm:"index"`
	// 超过最大尝试次数后置为死信，不再投递
	DeadAt *time.Time `gorm:"index"`
	// 已成功处理该事件的处理器名，重试时跳过
	Delivered datatypes.JSONSlice[string] `gorm:"default:'[]'"`
}

// DeliveredTo 处理器是否已成功处理
func (e *OutboxEvent) DeliveredTo(handler string) bool {
	for _, name := range e.Delivered {
		if name == handler {
			return true
		}
	}
	return false
}

func (*OutboxEvent) TableName() string {
	return "outbox_events"
}
