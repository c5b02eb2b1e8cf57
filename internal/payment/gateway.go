package payment

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"storefront_checkout/internal/model"
)

// ==================== 网关契约 ====================

var (
	// ErrGatewayNotRegistered 未注册的网关
	ErrGatewayNotRegistered = errors.New("支付网关未注册")
	// ErrGatewayNotConfigured 店铺未配置网关密钥
	ErrGatewayNotConfigured = errors.New("店铺未配置该支付网关")
	// ErrInvalidWebhook 回调载荷或签名无效
	ErrInvalidWebhook = errors.New("无效的支付回调")
	// ErrWebhookUnsupported 网关不接收回调
	ErrWebhookUnsupported = errors.New("该支付方式不支持回调")
)

// ManualGatewayName 人工联系（WhatsApp）付款，总是可用
const ManualGatewayName = model.PaymentMethodWhatsApp

// PaymentRequest 创建支付
type PaymentRequest struct {
	Order          *model.Order
	Store          *model.Store
	IdempotencyKey string
}

// PaymentResult 网关返回的支付信息
type PaymentResult struct {
	PaymentID    string
	PaymentURL   string
	ClientSecret string
	Status       string
}

// WebhookEvent 规范化后的回调
type WebhookEvent struct {
	PaymentID string
	Status    string
	// EventID 网关通知 ID，非空时参与去重
	EventID  string
	Metadata map[string]interface{}
}

// PaymentDetail 网关侧支付详情
type PaymentDetail struct {
	PaymentID string
	Status    string
	// Reference 下单时传给网关的订单号
	Reference string
}

// PaymentLookup 回调只携带支付 ID 的网关，处理时回查支付详情与订单号
type PaymentLookup interface {
	LookupPayment(ctx context.Context, store *model.Store, paymentID string) (*PaymentDetail, error)
}

// Gateway 支付网关
// 各实现将自身事件映射为 pending | awaiting_payment | paid | failed | cancelled
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error)
}

// ==================== Registry ====================

// Registry 按名称索引的网关集合
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
	order    []string
}

// NewRegistry 创建注册表
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, gw := range gateways {
		r.Register(gw)
	}
	return r
}

// Register 注册网关，同名覆盖
func (r *Registry) Register(gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := gw.Name()
	if _, exists := r.gateways[name]; !exists {
		r.order = append(r.order, name)
	}
	r.gateways[name] = gw
}

// Get 获取网关
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, ok := r.gateways[name]
	if !ok {
		return nil, ErrGatewayNotRegistered
	}
	return gw, nil
}

// Has 是否已注册
func (r *Registry) Has(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// Available 店铺启用的网关 + 始终可用的 WhatsApp
func (r *Registry) Available(store *model.Store) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	available := make([]string, 0, len(r.order)+1)
	for _, name := range r.order {
		if name == ManualGatewayName {
			continue
		}
		if store.GatewayEnabled(name) {
			available = append(available, name)
		}
	}
	return append(available, ManualGatewayName)
}
