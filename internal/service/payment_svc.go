package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/payment"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"
)

// 回调处理结果指标
const (
	webhookOutcomeApplied   = "applied"
	webhookOutcomeDuplicate = "duplicate"
	webhookOutcomeUnmatched = "unmatched"
	webhookOutcomeFailed    = "failed"
	webhookOutcomeDead      = "dead"
)

// WebhookDispatcher 将回调任务交给后台 worker
type WebhookDispatcher interface {
	Dispatch(jobID int64)
}

// ==================== PaymentService ====================

// PaymentService 支付发起与网关回调处理
type PaymentService struct {
	uow        *repository.OrderUnitOfWork
	payments   repository.PaymentRepository
	jobs       repository.WebhookJobRepository
	stores     repository.StoreRepository
	registry   *payment.Registry
	orders     *OrderService
	dispatcher WebhookDispatcher
	log        *zap.Logger
	now        func() time.Time
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	uow *repository.OrderUnitOfWork,
	payments repository.PaymentRepository,
	jobs repository.WebhookJobRepository,
	stores repository.StoreRepository,
	registry *payment.Registry,
	orders *OrderService,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		uow:      uow,
		payments: payments,
		jobs:     jobs,
		stores:   stores,
		registry: registry,
		orders:   orders,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// SetDispatcher worker 启动后注入；未注入时任务只由定时扫描处理
func (s *PaymentService) SetDispatcher(d WebhookDispatcher) {
	s.dispatcher = d
}

// AvailableGateways 店铺可用的支付方式
func (s *PaymentService) AvailableGateways(store *model.Store) []string {
	return s.registry.Available(store)
}

// ==================== 发起支付 ====================

// InitiatePayment 为订单创建支付；已存在支付记录时直接返回
func (s *PaymentService) InitiatePayment(ctx context.Context, store *model.Store, order *model.Order) (*dto.PaymentVO, error) {
	existing, err := s.payments.GetByOrderID(ctx, store.ID, order.ID)
	if err == nil {
		return toPaymentVO(existing), nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	gateway, err := s.registry.Get(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	idempotencyKey := uuid.NewString()
	result, err := gateway.CreatePayment(ctx, payment.PaymentRequest{
		Order:          order,
		Store:          store,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 %s 支付失败: %w", gateway.Name(), err)
	}

	record := &model.Payment{
		OrderID:          order.ID,
		StoreID:          store.ID,
		Gateway:          gateway.Name(),
		GatewayPaymentID: result.PaymentID,
		GatewayStatus:    result.Status,
		Amount:           order.TotalAmount,
		Currency:         "BRL",
		PaymentURL:       result.PaymentURL,
		IdempotencyKey:   idempotencyKey,
	}
	if result.ClientSecret != "" {
		record.Metadata = map[string]interface{}{"client_secret": result.ClientSecret}
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("保存支付记录失败: %w", err)
	}

	s.log.Info("[Payment] 支付已创建",
		zap.String("order_number", order.OrderNumber),
		zap.String("gateway", record.Gateway),
		zap.String("payment_id", record.GatewayPaymentID),
	)
	return toPaymentVO(record), nil
}

// ==================== 回调接收 ====================

// IntakeWebhook 同步解析回调并入队；重复回调返回 queued=false
// storeID 来自回调地址，未知时为 0
func (s *PaymentService) IntakeWebhook(ctx context.Context, gatewayName string, storeID int64, payload []byte, headers http.Header) (bool, error) {
	gateway, err := s.registry.Get(gatewayName)
	if err != nil {
		return false, err
	}

	event, err := gateway.ParseWebhook(ctx, payload, headers)
	if err != nil {
		metrics.RecordWebhook(gatewayName, webhookOutcomeFailed)
		return false, err
	}

	now := s.now()
	job := &model.WebhookJob{
		Gateway:          gatewayName,
		GatewayPaymentID: event.PaymentID,
		StoreID:          storeID,
		Status:           event.Status,
		DedupKey:         model.WebhookDedupKey(gatewayName, event.PaymentID, event.Status, event.EventID),
		Metadata:         event.Metadata,
		State:            model.WebhookJobPending,
		NextRunAt:        &now,
	}
	created, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		return false, fmt.Errorf("保存回调任务失败: %w", err)
	}
	if !created {
		metrics.RecordWebhook(gatewayName, webhookOutcomeDuplicate)
		s.log.Info("[Webhook] 重复回调已忽略", zap.String("dedup_key", job.DedupKey))
		return false, nil
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(job.ID)
	}
	return true, nil
}

// ==================== 回调处理 ====================

// webhookOrderTarget 网关状态对应的订单支付状态；failed/pending 只记录在支付上
func webhookOrderTarget(gatewayStatus string) (string, bool) {
	switch gatewayStatus {
	case model.GatewayStatusPaid:
		return model.PaymentStatusPaid, true
	case model.GatewayStatusAwaitingPayment:
		return model.PaymentStatusAwaitingPayment, true
	case model.GatewayStatusCancelled:
		return model.PaymentStatusCancelled, true
	}
	return "", false
}

// webhookTarget 回调对应的支付记录与生效状态
type webhookTarget struct {
	storeID int64
	orderID int64
	status  string
}

// resolveWebhookTarget 在事务外定位支付记录；网关支持回查时以网关详情为准
// 找不到对应记录返回 nil
func (s *PaymentService) resolveWebhookTarget(ctx context.Context, job *model.WebhookJob) (*webhookTarget, error) {
	record, err := s.payments.GetByGatewayRef(ctx, job.Gateway, job.GatewayPaymentID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		record = nil
	}

	gateway, err := s.registry.Get(job.Gateway)
	if err != nil {
		return nil, err
	}
	lookup, ok := gateway.(payment.PaymentLookup)
	if !ok {
		if record == nil {
			return nil, nil
		}
		return &webhookTarget{storeID: record.StoreID, orderID: record.OrderID, status: job.Status}, nil
	}

	storeID := job.StoreID
	if record != nil {
		storeID = record.StoreID
	}
	if storeID == 0 || s.stores == nil {
		return nil, nil
	}
	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	detail, err := lookup.LookupPayment(ctx, store, job.GatewayPaymentID)
	if errors.Is(err, payment.ErrGatewayNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record != nil {
		return &webhookTarget{storeID: record.StoreID, orderID: record.OrderID, status: detail.Status}, nil
	}

	// 支付记录保存的是下单时的网关引用，按订单号关联
	if detail.Reference == "" {
		return nil, nil
	}
	order, err := s.uow.Orders.GetByOrderNumber(ctx, detail.Reference)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if order.StoreID != store.ID {
		return nil, nil
	}
	bound, err := s.payments.GetByOrderID(ctx, store.ID, order.ID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if bound.Gateway != job.Gateway {
		return nil, nil
	}
	return &webhookTarget{storeID: store.ID, orderID: order.ID, status: detail.Status}, nil
}

// ProcessWebhookJob 应用一条回调任务，可安全重放
func (s *PaymentService) ProcessWebhookJob(ctx context.Context, job *model.WebhookJob) error {
	target, err := s.resolveWebhookTarget(ctx, job)
	if err != nil {
		metrics.RecordWebhook(job.Gateway, webhookOutcomeFailed)
		return err
	}
	if target == nil {
		metrics.RecordWebhook(job.Gateway, webhookOutcomeUnmatched)
		s.log.Warn("[Webhook] 未找到支付记录",
			zap.String("gateway", job.Gateway),
			zap.String("payment_id", job.GatewayPaymentID),
			zap.Int64("store_id", job.StoreID),
		)
		return nil
	}

	outcome := webhookOutcomeApplied
	err = s.uow.Transaction(ctx, func(uow *repository.OrderUnitOfWork) error {
		record, err := uow.Payments.GetByOrderID(ctx, target.storeID, target.orderID)
		if err != nil {
			return err
		}

		if record.GatewayStatus == target.status && record.GatewayPaymentID == job.GatewayPaymentID {
			outcome = webhookOutcomeDuplicate
			s.log.Info("[Webhook] 支付状态未变化",
				zap.String("payment_id", job.GatewayPaymentID),
				zap.String("status", target.status),
			)
			return nil
		}

		fields := map[string]interface{}{"gateway_status": target.status}
		if record.GatewayPaymentID != job.GatewayPaymentID {
			fields["gateway_payment_id"] = job.GatewayPaymentID
		}
		if len(job.Metadata) > 0 {
			fields["metadata"] = job.Metadata
		}
		if err := uow.Payments.UpdateFields(ctx, record.ID, fields); err != nil {
			return err
		}

		orderStatus, ok := webhookOrderTarget(target.status)
		if !ok {
			return nil
		}
		_, _, err = s.orders.applyPaymentStatus(ctx, uow, record.StoreID, record.OrderID, orderStatus)
		if errors.Is(err, ErrInvalidTransition) {
			s.log.Warn("[Webhook] 订单状态不允许变更，仅记录支付状态",
				zap.Int64("order_id", record.OrderID),
				zap.String("target", orderStatus),
			)
			return nil
		}
		return err
	})
	if err != nil {
		metrics.RecordWebhook(job.Gateway, webhookOutcomeFailed)
		return err
	}

	metrics.RecordWebhook(job.Gateway, outcome)
	return nil
}

// RecordDeadWebhook 记录放弃重试的回调
func (s *PaymentService) RecordDeadWebhook(job *model.WebhookJob, cause error) {
	metrics.RecordWebhook(job.Gateway, webhookOutcomeDead)
	s.log.Error("[Webhook] 回调处理失败次数超限",
		zap.Int64("job_id", job.ID),
		zap.String("dedup_key", job.DedupKey),
		zap.Error(cause),
	)
}
