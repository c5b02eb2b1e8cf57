package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

// OutboxRepository 事件发件箱
type OutboxRepository interface {
	Insert(ctx context.Context, event *model.OutboxEvent) error
	FetchPending(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, attempts int, errMsg string, delivered []string, next time.Time) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string, delivered []string) error
	ListByKey(ctx context.Context, topic, key string) ([]model.OutboxEvent, error)
}

type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建发件箱仓储
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Insert(ctx context.Context, event *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FetchPending 未投递、未死信且已到重试时间的事件
func (r *outboxRepository) FetchPending(ctx context.Context, now time.Time, limit int) ([]model.OutboxEvent, error) {
	var list []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL AND dead_at IS NULL").
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Update("sent_at", time.Now().UTC()).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id int64, attempts int, errMsg string, delivered []string, next time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"last_error":      errMsg,
			"delivered":       datatypes.NewJSONSlice(delivered),
			"next_attempt_at": next,
		}).Error
}

func (r *outboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string, delivered []string) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"last_error":      errMsg,
			"delivered":       datatypes.NewJSONSlice(delivered),
			"next_attempt_at": nil,
			"dead_at":         time.Now().UTC(),
		}).Error
}

func (r *outboxRepository) ListByKey(ctx context.Context, topic, key string) ([]model.OutboxEvent, error) {
	var list []model.OutboxEvent
	db := r.db.WithContext(ctx).Where("partition_key = ?", key)
	if topic != "" {
		db = db.Where("topic = ?", topic)
	}
	err := db.Order("id ASC").Find(&list).Error
	return list, err
}
