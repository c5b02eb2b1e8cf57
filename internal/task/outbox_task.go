package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/internal/service"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"
)

// OutboxRelayConfig 投递任务配置
type OutboxRelayConfig struct {
	Interval      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryInterval time.Duration
}

// ==================== OutboxRelayTask 发件箱投递 ====================

// OutboxRelayTask 周期性读取未投递事件，依次交给各 EventHandler
// 失败的事件按 RetryInterval 线性退避，已成功的处理器不再重复调用
// 超过 MaxAttempts 标记死信，不再阻塞后续事件
type OutboxRelayTask struct {
	outbox   repository.OutboxRepository
	handlers []service.EventHandler
	cron     *cron.Cron
	cfg      OutboxRelayConfig
	log      *zap.Logger
	now      func() time.Time

	mu sync.Mutex // 防止上一轮未结束时重入
}

// NewOutboxRelayTask 创建投递任务
func NewOutboxRelayTask(outbox repository.OutboxRepository, handlers []service.EventHandler, cfg OutboxRelayConfig, log *zap.Logger) *OutboxRelayTask {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Second
	}
	return &OutboxRelayTask{
		outbox:   outbox,
		handlers: handlers,
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// Start 启动定时投递
func (t *OutboxRelayTask) Start() error {
	_, err := t.cron.AddFunc("@every "+t.cfg.Interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		t.RelayOnce(ctx)
	})
	if err != nil {
		return err
	}

	t.cron.Start()
	t.log.Info("[Outbox] 事件投递任务已启动",
		zap.Duration("interval", t.cfg.Interval),
		zap.Int("max_attempts", t.cfg.MaxAttempts),
	)
	return nil
}

// Stop 停止并等待当前轮次结束
func (t *OutboxRelayTask) Stop() {
	<-t.cron.Stop().Done()
}

// RelayOnce 投递一批事件，返回成功数量
func (t *OutboxRelayTask) RelayOnce(ctx context.Context) int {
	if !t.mu.TryLock() {
		return 0
	}
	defer t.mu.Unlock()

	events, err := t.outbox.FetchPending(ctx, t.now().UTC(), t.cfg.BatchSize)
	if err != nil {
		t.log.Error("[Outbox] 读取待投递事件失败", zap.Error(err))
		return 0
	}

	sent := 0
	for i := range events {
		record := &events[i]
		if err := t.dispatch(ctx, record); err != nil {
			t.fail(ctx, record, err)
			continue
		}

		if err := t.outbox.MarkSent(ctx, record.ID); err != nil {
			t.log.Error("[Outbox] 标记已投递失败", zap.String("event_id", record.EventID), zap.Error(err))
			continue
		}
		metrics.RecordOutboxPublished(record.Topic)
		sent++
	}
	return sent
}

// dispatch 调用尚未成功的处理器，成功的处理器名追加到 record.Delivered
func (t *OutboxRelayTask) dispatch(ctx context.Context, record *model.OutboxEvent) error {
	for _, h := range t.handlers {
		if !h.Handles(record.Topic) || record.DeliveredTo(h.Name()) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil {
			return fmt.Errorf("%s: %w", h.Name(), err)
		}
		record.Delivered = append(record.Delivered, h.Name())
	}
	return nil
}

func (t *OutboxRelayTask) fail(ctx context.Context, record *model.OutboxEvent, cause error) {
	attempts := record.Attempts + 1
	if attempts >= t.cfg.MaxAttempts {
		if err := t.outbox.MarkDead(ctx, record.ID, attempts, cause.Error(), record.Delivered); err != nil {
			t.log.Error("[Outbox] 标记死信失败", zap.String("event_id", record.EventID), zap.Error(err))
			return
		}
		metrics.RecordOutboxDead(record.Topic)
		t.log.Error("[Outbox] 事件超过最大尝试次数，已放弃",
			zap.String("event_id", record.EventID),
			zap.String("topic", record.Topic),
			zap.Int("attempts", attempts),
			zap.Strings("delivered", record.Delivered),
			zap.Error(cause),
		)
		return
	}

	next := t.now().UTC().Add(t.cfg.RetryInterval * time.Duration(attempts))
	if err := t.outbox.MarkRetry(ctx, record.ID, attempts, cause.Error(), record.Delivered, next); err != nil {
		t.log.Error("[Outbox] 记录失败状态出错", zap.String("event_id", record.EventID), zap.Error(err))
		return
	}
	t.log.Warn("[Outbox] 事件投递失败，稍后重试",
		zap.String("event_id", record.EventID),
		zap.String("topic", record.Topic),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(cause),
	)
}
