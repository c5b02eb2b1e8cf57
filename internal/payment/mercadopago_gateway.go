package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"storefront_checkout/internal/model"
)

// MercadoPagoGatewayName 网关名
const MercadoPagoGatewayName = model.PaymentMethodMercadoPago

// MercadoPagoGateway Checkout Pro 偏好设置网关
type MercadoPagoGateway struct {
	http            *resty.Client
	notificationURL string
	log             *zap.Logger
}

// NewMercadoPagoGateway 创建网关；http 为空时使用官方 API 地址
func NewMercadoPagoGateway(httpClient *resty.Client, log *zap.Logger) *MercadoPagoGateway {
	if httpClient == nil {
		httpClient = resty.New().
			SetBaseURL("https://api.mercadopago.com").
			SetTimeout(15 * time.Second)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MercadoPagoGateway{http: httpClient, log: log}
}

// WithNotificationURL 回调地址；创建偏好设置时附带 store_id 以便回调定位店铺
func (g *MercadoPagoGateway) WithNotificationURL(notificationURL string) *MercadoPagoGateway {
	g.notificationURL = notificationURL
	return g
}

func (g *MercadoPagoGateway) Name() string { return MercadoPagoGatewayName }

func (g *MercadoPagoGateway) storeNotificationURL(storeID int64) string {
	if g.notificationURL == "" {
		return ""
	}
	u, err := url.Parse(g.notificationURL)
	if err != nil {
		g.log.Warn("[MercadoPago] 回调地址无效", zap.String("url", g.notificationURL), zap.Error(err))
		return ""
	}
	q := u.Query()
	q.Set("store_id", strconv.FormatInt(storeID, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

type mpPreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPreferenceRequest struct {
	Items             []mpPreferenceItem `json:"items"`
	ExternalReference string             `json:"external_reference"`
	NotificationURL   string             `json:"notification_url,omitempty"`
	Payer             map[string]string  `json:"payer,omitempty"`
}

type mpPreferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePayment 创建偏好设置，返回 init_point 支付链接
func (g *MercadoPagoGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	accessToken := req.Store.GatewaySecret(MercadoPagoGatewayName, "access_token")
	if accessToken == "" {
		return nil, ErrGatewayNotConfigured
	}

	body := mpPreferenceRequest{
		Items: []mpPreferenceItem{{
			Title:      fmt.Sprintf("%s - %s", req.Store.Name, req.Order.OrderNumber),
			Quantity:   1,
			UnitPrice:  req.Order.GetTotal(),
			CurrencyID: "BRL",
		}},
		ExternalReference: req.Order.OrderNumber,
		NotificationURL:   g.storeNotificationURL(req.Store.ID),
	}
	if req.Order.CustomerEmail != "" {
		body.Payer = map[string]string{"email": req.Order.CustomerEmail}
	}

	var result mpPreferenceResponse
	r := g.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(body).
		SetResult(&result)
	if req.IdempotencyKey != "" {
		r.SetHeader("X-Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := r.Post("/checkout/preferences")
	if err != nil {
		return nil, fmt.Errorf("mercadopago: 请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mercadopago: 创建偏好设置失败 HTTP %d", resp.StatusCode())
	}

	g.log.Info("[MercadoPago] 偏好设置已创建",
		zap.String("order_number", req.Order.OrderNumber),
		zap.String("preference_id", result.ID),
	)
	return &PaymentResult{
		PaymentID:  result.ID,
		PaymentURL: result.InitPoint,
		Status:     model.GatewayStatusPending,
	}, nil
}

type mpWebhookPayload struct {
	ID     any    `json:"id"`
	Action string `json:"action"`
	Data   struct {
		ID any `json:"id"`
	} `json:"data"`
}

// ParseWebhook 通知只携带支付 ID；action 映射的状态仅作初判，处理时以 LookupPayment 为准
func (g *MercadoPagoGateway) ParseWebhook(_ context.Context, payload []byte, _ http.Header) (*WebhookEvent, error) {
	var body mpWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	paymentID := idString(body.Data.ID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: 缺少 data.id", ErrInvalidWebhook)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(payload, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	return &WebhookEvent{
		PaymentID: paymentID,
		Status:    mapMercadoPagoAction(body.Action),
		EventID:   idString(body.ID),
		Metadata:  metadata,
	}, nil
}

type mpPaymentResponse struct {
	ID                any    `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
}

// LookupPayment GET /v1/payments/{id}，用店铺自己的 access_token
func (g *MercadoPagoGateway) LookupPayment(ctx context.Context, store *model.Store, paymentID string) (*PaymentDetail, error) {
	accessToken := store.GatewaySecret(MercadoPagoGatewayName, "access_token")
	if accessToken == "" {
		return nil, ErrGatewayNotConfigured
	}

	var result mpPaymentResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("id", paymentID).
		SetResult(&result).
		Get("/v1/payments/{id}")
	if err != nil {
		return nil, fmt.Errorf("mercadopago: 请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mercadopago: 查询支付失败 HTTP %d", resp.StatusCode())
	}

	id := idString(result.ID)
	if id == "" {
		id = paymentID
	}
	return &PaymentDetail{
		PaymentID: id,
		Status:    mapMercadoPagoStatus(result.Status),
		Reference: result.ExternalReference,
	}, nil
}

// idString data.id 可能是字符串也可能是数字
func idString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func mapMercadoPagoAction(action string) string {
	switch action {
	case "payment.created":
		return model.GatewayStatusAwaitingPayment
	case "payment.updated":
		return model.GatewayStatusPaid
	default:
		return model.GatewayStatusPending
	}
}

// mapMercadoPagoStatus 支付对象状态
func mapMercadoPagoStatus(status string) string {
	switch status {
	case "approved":
		return model.GatewayStatusPaid
	case "pending", "in_process", "authorized", "in_mediation":
		return model.GatewayStatusAwaitingPayment
	case "rejected":
		return model.GatewayStatusFailed
	case "cancelled", "refunded", "charged_back":
		return model.GatewayStatusCancelled
	default:
		return model.GatewayStatusPending
	}
}
