package payment

import (
	"context"
	"net/http"

	"storefront_checkout/internal/model"
)

// LinkBuilder 生成联系店主付款的链接
type LinkBuilder func(store *model.Store, order *model.Order) string

// ManualGateway 通过 WhatsApp 与店主确认付款，不经过任何支付网关
type ManualGateway struct {
	link LinkBuilder
}

// NewManualGateway 创建人工付款网关
func NewManualGateway(link LinkBuilder) *ManualGateway {
	return &ManualGateway{link: link}
}

func (g *ManualGateway) Name() string { return ManualGatewayName }

// CreatePayment 支付 ID 使用订单号，链接为 wa.me 订单消息
func (g *ManualGateway) CreatePayment(_ context.Context, req PaymentRequest) (*PaymentResult, error) {
	result := &PaymentResult{
		PaymentID: "wa_" + req.Order.OrderNumber,
		Status:    model.GatewayStatusPending,
	}
	if g.link != nil {
		result.PaymentURL = g.link(req.Store, req.Order)
	}
	return result, nil
}

func (g *ManualGateway) ParseWebhook(context.Context, []byte, http.Header) (*WebhookEvent, error) {
	return nil, ErrWebhookUnsupported
}
