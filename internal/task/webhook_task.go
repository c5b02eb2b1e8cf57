package task

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/logger"
)

// WebhookProcessor 回调任务的业务处理
type WebhookProcessor interface {
	ProcessWebhookJob(ctx context.Context, job *model.WebhookJob) error
	RecordDeadWebhook(job *model.WebhookJob, cause error)
}

// WebhookWorkerConfig worker 配置
type WebhookWorkerConfig struct {
	Workers       int
	MaxAttempts   int
	RetryInterval time.Duration
	QueueSize     int
}

// ==================== WebhookWorker 回调处理池 ====================

// WebhookWorker 进程内回调处理池
// 接收入队后的任务 ID；失败按 RetryInterval 退避重试，超过 MaxAttempts 标记 dead
// 定时扫描到期的 pending 任务，覆盖进程重启与队列溢出
type WebhookWorker struct {
	jobs      repository.WebhookJobRepository
	processor WebhookProcessor
	cfg       WebhookWorkerConfig
	log       *zap.Logger
	now       func() time.Time

	queue    chan int64
	inflight sync.Map // jobID -> struct{}
	quit     chan struct{}
	wg       conc.WaitGroup
	cron     *cron.Cron
	stopOnce sync.Once
}

// NewWebhookWorker 创建回调处理池
func NewWebhookWorker(jobs repository.WebhookJobRepository, processor WebhookProcessor, cfg WebhookWorkerConfig, log *zap.Logger) *WebhookWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &WebhookWorker{
		jobs:      jobs,
		processor: processor,
		cfg:       cfg,
		log:       logger.OrNop(log),
		now:       time.Now,
		queue:     make(chan int64, cfg.QueueSize),
		quit:      make(chan struct{}),
		cron:      cron.New(cron.WithSeconds()),
	}
}

// Dispatch 投递任务 ID；队列已满时丢弃，由定时扫描兜底
func (w *WebhookWorker) Dispatch(jobID int64) {
	select {
	case w.queue <- jobID:
	default:
		w.log.Warn("[WebhookWorker] 队列已满，等待定时扫描", zap.Int64("job_id", jobID))
	}
}

// Start 启动 worker 与定时扫描
func (w *WebhookWorker) Start() error {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Go(w.loop)
	}

	_, err := w.cron.AddFunc("@every "+w.cfg.RetryInterval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		w.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()

	w.log.Info("[WebhookWorker] 回调处理池已启动",
		zap.Int("workers", w.cfg.Workers),
		zap.Int("max_attempts", w.cfg.MaxAttempts),
	)
	return nil
}

// Stop 停止扫描并等待 worker 退出
func (w *WebhookWorker) Stop() {
	w.stopOnce.Do(func() {
		<-w.cron.Stop().Done()
		close(w.quit)
		w.wg.Wait()
	})
}

func (w *WebhookWorker) loop() {
	for {
		select {
		case <-w.quit:
			return
		case id := <-w.queue:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			w.RunJob(ctx, id)
			cancel()
		}
	}
}

// Sweep 重新投递到期的 pending 任务，返回投递数量
func (w *WebhookWorker) Sweep(ctx context.Context) int {
	due, err := w.jobs.FindDue(ctx, w.now(), 100)
	if err != nil {
		w.log.Error("[WebhookWorker] 扫描待处理任务失败", zap.Error(err))
		return 0
	}
	for _, job := range due {
		w.Dispatch(job.ID)
	}
	return len(due)
}

// RunJob 同步处理一条任务；并发投递的同一任务只处理一次
func (w *WebhookWorker) RunJob(ctx context.Context, jobID int64) {
	if _, busy := w.inflight.LoadOrStore(jobID, struct{}{}); busy {
		return
	}
	defer w.inflight.Delete(jobID)

	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		w.log.Error("[WebhookWorker] 读取任务失败", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	if job.State != model.WebhookJobPending {
		return
	}
	if job.NextRunAt != nil && job.NextRunAt.After(w.now()) {
		return
	}

	procErr := w.processor.ProcessWebhookJob(ctx, job)
	if procErr == nil {
		if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
			w.log.Error("[WebhookWorker] 标记完成失败", zap.Int64("job_id", job.ID), zap.Error(err))
		}
		return
	}

	attempts := job.Attempts + 1
	if attempts >= w.cfg.MaxAttempts {
		if err := w.jobs.MarkDead(ctx, job.ID, attempts, procErr.Error()); err != nil {
			w.log.Error("[WebhookWorker] 标记失败任务出错", zap.Int64("job_id", job.ID), zap.Error(err))
		}
		w.processor.RecordDeadWebhook(job, procErr)
		return
	}

	next := w.now().Add(w.cfg.RetryInterval * time.Duration(attempts))
	if err := w.jobs.MarkRetry(ctx, job.ID, attempts, procErr.Error(), next); err != nil {
		w.log.Error("[WebhookWorker] 记录重试失败", zap.Int64("job_id", job.ID), zap.Error(err))
	}
	w.log.Warn("[WebhookWorker] 回调处理失败，等待重试",
		zap.Int64("job_id", job.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_run_at", next),
		zap.Error(procErr),
	)
}
