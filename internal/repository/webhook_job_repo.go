package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront_checkout/internal/model"
)

// WebhookJobRepository 网关回调任务仓储
type WebhookJobRepository interface {
	// Enqueue 按去重键插入，重复回调返回 created=false
	Enqueue(ctx context.Context, job *model.WebhookJob) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.WebhookJob, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]model.WebhookJob, error)
	MarkDone(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, attempts int, errMsg string, next time.Time) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}

type webhookJobRepository struct {
	db *gorm.DB
}

// NewWebhookJobRepository 创建回调任务仓储
func NewWebhookJobRepository(db *gorm.DB) WebhookJobRepository {
	return &webhookJobRepository{db: db}
}

func (r *webhookJobRepository) Enqueue(ctx context.Context, job *model.WebhookJob) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).
		Create(job)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *webhookJobRepository) GetByID(ctx context.Context, id int64) (*model.WebhookJob, error) {
	var job model.WebhookJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *webhookJobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]model.WebhookJob, error) {
	var list []model.WebhookJob
	err := r.db.WithContext(ctx).
		Where("state = ? AND (next_run_at IS NULL OR next_run_at <= ?)", model.WebhookJobPending, now).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *webhookJobRepository) MarkDone(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.WebhookJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":       model.WebhookJobDone,
			"next_run_at": nil,
		}).Error
}

func (r *webhookJobRepository) MarkRetry(ctx context.Context, id int64, attempts int, errMsg string, next time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.WebhookJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":    attempts,
			"last_error":  errMsg,
			"next_run_at": next,
		}).Error
}

func (r *webhookJobRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&model.WebhookJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":       model.WebhookJobDead,
			"attempts":    attempts,
			"last_error":  errMsg,
			"next_run_at": nil,
		}).Error
}
