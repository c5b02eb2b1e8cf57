package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"storefront_checkout/internal/model"
)

// StripeGatewayName 网关名
const StripeGatewayName = model.PaymentMethodStripe

// StripePaymentIntentAPI PaymentIntent 客户端（便于替换）
type StripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeClientFactory 按店铺密钥构造 PaymentIntent 客户端
type StripeClientFactory func(secretKey string) StripePaymentIntentAPI

// StripeGatewayConfig Stripe 网关配置
type StripeGatewayConfig struct {
	WebhookSecret string
	Backends      *stripe.Backends
	NewClient     StripeClientFactory
	Logger        *zap.Logger
}

// StripeGateway Stripe PaymentIntent 网关，密钥按店铺读取
type StripeGateway struct {
	webhookSecret string
	newClient     StripeClientFactory
	log           *zap.Logger
}

// NewStripeGateway 创建 Stripe 网关
func NewStripeGateway(cfg StripeGatewayConfig) *StripeGateway {
	factory := cfg.NewClient
	if factory == nil {
		backends := cfg.Backends
		factory = func(secretKey string) StripePaymentIntentAPI {
			return client.New(secretKey, backends).PaymentIntents
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeGateway{
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		newClient:     factory,
		log:           log,
	}
}

func (g *StripeGateway) Name() string { return StripeGatewayName }

// CreatePayment 创建 PaymentIntent，金额单位为分
func (g *StripeGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	secretKey := req.Store.GatewaySecret(StripeGatewayName, "secret_key")
	if secretKey == "" {
		return nil, ErrGatewayNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Order.TotalAmount),
		Currency: stripe.String(string(stripe.CurrencyBRL)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(fmt.Sprintf("%s - %s", req.Store.Name, req.Order.OrderNumber)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.Order.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.Order.CustomerEmail)
	}
	params.AddMetadata("order_number", req.Order.OrderNumber)
	params.AddMetadata("store_id", strconv.FormatInt(req.Store.ID, 10))

	intent, err := g.newClient(secretKey).New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: 创建 PaymentIntent 失败: %w", err)
	}

	g.log.Info("[Stripe] PaymentIntent 已创建",
		zap.String("order_number", req.Order.OrderNumber),
		zap.String("intent_id", intent.ID),
	)
	return &PaymentResult{
		PaymentID:    intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       mapStripeIntentStatus(intent.Status),
	}, nil
}

// ParseWebhook 配置了签名密钥时校验 Stripe-Signature
func (g *StripeGateway) ParseWebhook(_ context.Context, payload []byte, headers http.Header) (*WebhookEvent, error) {
	var event stripe.Event
	if g.webhookSecret != "" {
		verified, err := webhook.ConstructEventWithOptions(payload, headers.Get("Stripe-Signature"), g.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
		}
		event = verified
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	if event.Data == nil || event.Data.Object == nil {
		return nil, fmt.Errorf("%w: 缺少 data.object", ErrInvalidWebhook)
	}
	paymentID, _ := event.Data.Object["id"].(string)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: 缺少支付 ID", ErrInvalidWebhook)
	}

	return &WebhookEvent{
		PaymentID: paymentID,
		Status:    mapStripeEventType(string(event.Type)),
		Metadata:  event.Data.Object,
	}, nil
}

func mapStripeEventType(eventType string) string {
	switch eventType {
	case "payment_intent.succeeded":
		return model.GatewayStatusPaid
	case "payment_intent.payment_failed":
		return model.GatewayStatusFailed
	case "payment_intent.canceled":
		return model.GatewayStatusCancelled
	default:
		return model.GatewayStatusPending
	}
}

func mapStripeIntentStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return model.GatewayStatusPaid
	case stripe.PaymentIntentStatusCanceled:
		return model.GatewayStatusCancelled
	case stripe.PaymentIntentStatusProcessing:
		return model.GatewayStatusAwaitingPayment
	default:
		return model.GatewayStatusPending
	}
}
