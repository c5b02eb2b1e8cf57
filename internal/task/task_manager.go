package task

import (
	"go.uber.org/zap"

	"storefront_checkout/pkg/logger"
)

// ==================== TaskManager 后台任务管理器 ====================

// Task 可启停的后台任务
type Task interface {
	Start() error
	Stop()
}

// TaskManager 统一管理后台任务
// 管理范围：发件箱投递、回调处理池、内存缓存清理
type TaskManager struct {
	tasks   []namedTask
	started []namedTask
	log     *zap.Logger
}

type namedTask struct {
	name string
	task Task
}

// NewTaskManager 创建任务管理器
func NewTaskManager(log *zap.Logger) *TaskManager {
	return &TaskManager{log: logger.OrNop(log)}
}

// Add 注册任务，nil 忽略
func (tm *TaskManager) Add(name string, t Task) {
	if t == nil {
		return
	}
	tm.tasks = append(tm.tasks, namedTask{name: name, task: t})
}

// Start 按注册顺序启动；任一失败则停止已启动任务
func (tm *TaskManager) Start() error {
	tm.log.Info("[TaskManager] 正在启动后台任务...")
	for _, nt := range tm.tasks {
		if err := nt.task.Start(); err != nil {
			tm.log.Error("[TaskManager] 任务启动失败", zap.String("task", nt.name), zap.Error(err))
			tm.Stop()
			return err
		}
		tm.started = append(tm.started, nt)
	}
	tm.log.Info("[TaskManager] 后台任务已全部启动", zap.Int("count", len(tm.started)))
	return nil
}

// Stop 逆序停止已启动的任务
func (tm *TaskManager) Stop() {
	for i := len(tm.started) - 1; i >= 0; i-- {
		tm.started[i].task.Stop()
	}
	tm.started = nil
	tm.log.Info("[TaskManager] 后台任务已全部停止")
}

// Status 各任务是否运行中
func (tm *TaskManager) Status() map[string]bool {
	status := make(map[string]bool, len(tm.tasks))
	for _, nt := range tm.tasks {
		status[nt.name] = false
	}
	for _, nt := range tm.started {
		status[nt.name] = true
	}
	return status
}
