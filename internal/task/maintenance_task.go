package task

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"storefront_checkout/pkg/logger"
)

// Sweeper 可定期清理的内存缓存
type Sweeper interface {
	Sweep() int
}

// SweeperFunc 函数适配
type SweeperFunc func() int

func (f SweeperFunc) Sweep() int { return f() }

// MaintenanceTask 定期清理过期的承运商 Token、限流条目等内存状态
type MaintenanceTask struct {
	sweepers map[string]Sweeper
	cron     *cron.Cron
	schedule string
	log      *zap.Logger
}

// NewMaintenanceTask 创建清理任务，默认每 10 分钟一次
func NewMaintenanceTask(sweepers map[string]Sweeper, log *zap.Logger) *MaintenanceTask {
	return &MaintenanceTask{
		sweepers: sweepers,
		cron:     cron.New(cron.WithSeconds()),
		schedule: "0 0/10 * * * *",
		log:      logger.OrNop(log),
	}
}

// Start 启动定时清理
func (t *MaintenanceTask) Start() error {
	if _, err := t.cron.AddFunc(t.schedule, t.RunOnce); err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop 停止
func (t *MaintenanceTask) Stop() {
	<-t.cron.Stop().Done()
}

// RunOnce 执行一轮清理
func (t *MaintenanceTask) RunOnce() {
	start := time.Now()
	for name, s := range t.sweepers {
		if n := s.Sweep(); n > 0 {
			t.log.Info("[Maintenance] 已清理过期条目", zap.String("cache", name), zap.Int("removed", n))
		}
	}
	t.log.Debug("[Maintenance] 清理完成", zap.Duration("elapsed", time.Since(start)))
}
