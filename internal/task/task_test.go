package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/internal/service"
)

// ==================== 辅助函数 ====================

func setupTaskTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取连接池失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.OutboxEvent{}, &model.WebhookJob{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// ==================== OutboxRelayTask ====================

// flakyHandler 指定事件第一次处理失败
type flakyHandler struct {
	mu       sync.Mutex
	name     string
	topic    string
	failOnce map[string]bool
	failAll  map[string]bool
	handled  []string
}

func (h *flakyHandler) Name() string {
	if h.name == "" {
		return "flaky"
	}
	return h.name
}

func (h *flakyHandler) Handles(topic string) bool { return h.topic == "" || topic == h.topic }

func (h *flakyHandler) Handle(_ context.Context, record *model.OutboxEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failAll[record.EventID] {
		return errors.New("payload rejected")
	}
	if h.failOnce[record.EventID] {
		delete(h.failOnce, record.EventID)
		return errors.New("broker unavailable")
	}
	h.handled = append(h.handled, record.EventID)
	return nil
}

func insertOutbox(t *testing.T, outbox repository.OutboxRepository, eventID, topic string) {
	err := outbox.Insert(context.Background(), &model.OutboxEvent{
		EventID:      eventID,
		Topic:        topic,
		PartitionKey: "ORD-1",
		Payload:      []byte(`{"order_number":"ORD-1"}`),
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestOutboxRelayTask_RetriesFailedEvents(t *testing.T) {
	db := setupTaskTestDB(t)
	outbox := repository.NewOutboxRepository(db)
	ctx := context.Background()

	insertOutbox(t, outbox, "evt-1", model.TopicOrderCreated)
	insertOutbox(t, outbox, "evt-2", model.TopicOrderStatusChanged)

	handler := &flakyHandler{name: "all", failOnce: map[string]bool{"evt-1": true}}
	onlyCreated := &flakyHandler{name: "created", topic: model.TopicOrderCreated, failOnce: map[string]bool{}}
	relay := NewOutboxRelayTask(outbox, []service.EventHandler{handler, onlyCreated}, OutboxRelayConfig{
		Interval: time.Second, BatchSize: 10, RetryInterval: time.Minute,
	}, nil)
	now := time.Now()
	relay.now = func() time.Time { return now }

	assert.Equal(t, 1, relay.RelayOnce(ctx))
	assert.Equal(t, []string{"evt-2"}, handler.handled)
	assert.Empty(t, onlyCreated.handled)

	var failed model.OutboxEvent
	require.NoError(t, db.Where("event_id = ?", "evt-1").First(&failed).Error)
	assert.Equal(t, 1, failed.Attempts)
	assert.Contains(t, failed.LastError, "broker unavailable")
	assert.Nil(t, failed.SentAt)
	require.NotNil(t, failed.NextAttemptAt)

	// 退避期内不重试
	assert.Equal(t, 0, relay.RelayOnce(ctx))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, relay.RelayOnce(ctx))
	assert.Equal(t, []string{"evt-2", "evt-1"}, handler.handled)
	assert.Equal(t, []string{"evt-1"}, onlyCreated.handled)

	// 全部投递后无事可做
	assert.Equal(t, 0, relay.RelayOnce(ctx))
}

func TestOutboxRelayTask_PoisonEventGoesDead(t *testing.T) {
	db := setupTaskTestDB(t)
	outbox := repository.NewOutboxRepository(db)
	ctx := context.Background()

	insertOutbox(t, outbox, "evt-poison", model.TopicOrderCreated)
	insertOutbox(t, outbox, "evt-good", model.TopicOrderCreated)

	// kafka 先成功，webhook 始终拒绝 evt-poison
	kafka := &flakyHandler{name: "kafka", failOnce: map[string]bool{}}
	webhook := &flakyHandler{name: "webhook", failOnce: map[string]bool{}, failAll: map[string]bool{"evt-poison": true}}
	relay := NewOutboxRelayTask(outbox, []service.EventHandler{kafka, webhook}, OutboxRelayConfig{
		Interval: time.Second, BatchSize: 1, MaxAttempts: 3, RetryInterval: time.Second,
	}, nil)
	now := time.Now()
	relay.now = func() time.Time { return now }

	for round := 0; round < 6; round++ {
		relay.RelayOnce(ctx)
		now = now.Add(time.Minute)
	}

	var poison model.OutboxEvent
	require.NoError(t, db.Where("event_id = ?", "evt-poison").First(&poison).Error)
	assert.Equal(t, 3, poison.Attempts)
	assert.NotNil(t, poison.DeadAt)
	assert.Nil(t, poison.SentAt)
	assert.Equal(t, []string{"kafka"}, []string(poison.Delivered))

	var good model.OutboxEvent
	require.NoError(t, db.Where("event_id = ?", "evt-good").First(&good).Error)
	assert.NotNil(t, good.SentAt)

	// kafka 对每个事件只发布一次
	assert.Equal(t, []string{"evt-poison", "evt-good"}, kafka.handled)
	assert.Equal(t, []string{"evt-good"}, webhook.handled)

	pending, err := outbox.FetchPending(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 0, relay.RelayOnce(ctx))
}

// ==================== WebhookWorker ====================

// recordingProcessor 按预设结果处理任务
type recordingProcessor struct {
	mu    sync.Mutex
	err   error
	calls int
	dead  []int64
}

func (p *recordingProcessor) ProcessWebhookJob(context.Context, *model.WebhookJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *recordingProcessor) RecordDeadWebhook(job *model.WebhookJob, _ error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = append(p.dead, job.ID)
}

func (p *recordingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func enqueueJob(t *testing.T, jobs repository.WebhookJobRepository, paymentID string) *model.WebhookJob {
	job := &model.WebhookJob{
		Gateway:          "stripe",
		GatewayPaymentID: paymentID,
		Status:           model.GatewayStatusPaid,
		DedupKey:         model.WebhookDedupKey("stripe", paymentID, model.GatewayStatusPaid),
		State:            model.WebhookJobPending,
	}
	created, err := jobs.Enqueue(context.Background(), job)
	require.NoError(t, err)
	require.True(t, created)
	return job
}

func TestWebhookWorker_RetryThenDead(t *testing.T) {
	db := setupTaskTestDB(t)
	jobs := repository.NewWebhookJobRepository(db)
	ctx := context.Background()
	job := enqueueJob(t, jobs, "pi_retry")

	processor := &recordingProcessor{err: errors.New("db timeout")}
	worker := NewWebhookWorker(jobs, processor, WebhookWorkerConfig{MaxAttempts: 2, RetryInterval: time.Minute}, nil)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	worker.now = func() time.Time { return now }

	worker.RunJob(ctx, job.ID)
	stored, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookJobPending, stored.State)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, stored.NextRunAt.Equal(now.Add(time.Minute)))

	// 未到重试时间
	worker.RunJob(ctx, job.ID)
	assert.Equal(t, 1, processor.callCount())
	assert.Equal(t, 0, worker.Sweep(ctx))

	now = now.Add(2 * time.Minute)
	worker.RunJob(ctx, job.ID)
	stored, err = jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookJobDead, stored.State)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, []int64{job.ID}, processor.dead)

	// dead 任务不再处理
	worker.RunJob(ctx, job.ID)
	assert.Equal(t, 2, processor.callCount())
}

func TestWebhookWorker_SweepRequeuesDueJobs(t *testing.T) {
	db := setupTaskTestDB(t)
	jobs := repository.NewWebhookJobRepository(db)
	ctx := context.Background()
	first := enqueueJob(t, jobs, "pi_a")
	second := enqueueJob(t, jobs, "pi_b")
	require.NoError(t, jobs.MarkDone(ctx, second.ID))

	worker := NewWebhookWorker(jobs, &recordingProcessor{}, WebhookWorkerConfig{QueueSize: 1}, nil)

	assert.Equal(t, 1, worker.Sweep(ctx))
	assert.Equal(t, first.ID, <-worker.queue)

	// 队列已满时丢弃，不阻塞
	worker.Dispatch(1)
	worker.Dispatch(2)
	assert.Len(t, worker.queue, 1)
}

func TestWebhookWorker_StartProcessesDispatchedJobs(t *testing.T) {
	db := setupTaskTestDB(t)
	jobs := repository.NewWebhookJobRepository(db)
	job := enqueueJob(t, jobs, "pi_live")

	processor := &recordingProcessor{}
	worker := NewWebhookWorker(jobs, processor, WebhookWorkerConfig{Workers: 2, RetryInterval: time.Hour}, nil)
	require.NoError(t, worker.Start())
	defer worker.Stop()

	worker.Dispatch(job.ID)
	worker.Dispatch(job.ID)

	assert.Eventually(t, func() bool {
		stored, err := jobs.GetByID(context.Background(), job.ID)
		return err == nil && stored.State == model.WebhookJobDone
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, processor.callCount())
}

// ==================== TaskManager ====================

type fakeTask struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeTask) Start() error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeTask) Stop() {
	*f.log = append(*f.log, "stop:"+f.name)
}

func TestTaskManager_StartStopOrder(t *testing.T) {
	var events []string
	tm := NewTaskManager(nil)
	tm.Add("a", &fakeTask{name: "a", log: &events})
	tm.Add("b", &fakeTask{name: "b", log: &events})
	tm.Add("none", nil)

	require.NoError(t, tm.Start())
	assert.Equal(t, map[string]bool{"a": true, "b": true}, tm.Status())

	tm.Stop()
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
	assert.Equal(t, map[string]bool{"a": false, "b": false}, tm.Status())
}

func TestTaskManager_StartFailureRollsBack(t *testing.T) {
	var events []string
	tm := NewTaskManager(nil)
	tm.Add("a", &fakeTask{name: "a", log: &events})
	tm.Add("b", &fakeTask{name: "b", log: &events})
	tm.Add("broken", &fakeTask{name: "broken", log: &events, startErr: errors.New("bad cron expression")})

	require.Error(t, tm.Start())
	assert.Equal(t, []string{"start:a", "start:b", "start:broken", "stop:b", "stop:a"}, events)
	assert.False(t, tm.Status()["a"])
}

// ==================== MaintenanceTask ====================

func TestMaintenanceTask_RunOnce(t *testing.T) {
	calls := map[string]int{}
	task := NewMaintenanceTask(map[string]Sweeper{
		"tokens":  SweeperFunc(func() int { calls["tokens"]++; return 2 }),
		"limiter": SweeperFunc(func() int { calls["limiter"]++; return 0 }),
	}, nil)

	task.RunOnce()
	task.RunOnce()
	assert.Equal(t, map[string]int{"tokens": 2, "limiter": 2}, calls)

	require.NoError(t, task.Start())
	task.Stop()
}
