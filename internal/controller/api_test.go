package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_checkout/internal/controller"
	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/payment"
	"storefront_checkout/internal/repository"
	"storefront_checkout/internal/router"
	"storefront_checkout/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 测试环境 ====================

type testEnv struct {
	db      *gorm.DB
	engine  *gin.Engine
	store   *model.Store
	product *model.Product
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Store{}, &model.StoreDomain{},
		&model.Product{}, &model.ProductVariation{},
		&model.Cart{}, &model.CartItem{},
		&model.Order{}, &model.OrderItem{}, &model.Payment{},
		&model.ShippingOption{},
		&model.OutboxEvent{}, &model.WebhookJob{},
	))

	store := &model.Store{Name: "Loja Demo", Slug: "demo", WhatsApp: "5511999999999", Status: model.StoreStatusActive}
	require.NoError(t, db.Create(store).Error)
	require.NoError(t, db.Create(&model.StoreDomain{StoreID: store.ID, Domain: "loja.demo.com.br", IsPrimary: true}).Error)
	product := &model.Product{StoreID: store.ID, Name: "Vestido", Slug: "vestido", PriceAmount: 4990, Stock: 5, Active: true}
	require.NoError(t, db.Create(product).Error)

	stores := repository.NewStoreRepository(db)
	carts := repository.NewCartRepository(db)
	orders := repository.NewOrderRepository(db)
	payments := repository.NewPaymentRepository(db)
	uow := repository.NewOrderUnitOfWork(db)
	events := service.NewEventPublisher()

	whatsapp := service.NewWhatsAppService()
	registry := payment.NewRegistry(
		payment.NewStripeGateway(payment.StripeGatewayConfig{WebhookSecret: "whsec_test"}),
		payment.NewMercadoPagoGateway(nil, nil),
		payment.NewManualGateway(whatsapp.OrderLink),
	)

	cartSvc := service.NewCartService(carts, repository.NewProductRepository(db), nil)
	shippingSvc := service.NewShippingService(repository.NewShippingOptionRepository(db), nil, nil, nil)
	checkoutSvc := service.NewCheckoutService(uow, carts, shippingSvc, registry, events, nil)
	orderSvc := service.NewOrderService(uow, orders, payments, events, nil)
	paymentSvc := service.NewPaymentService(uow, payments, repository.NewWebhookJobRepository(db), stores, registry, orderSvc, nil)

	engine := router.NewEngine(nil)
	router.InitRoutes(engine, stores, router.Controllers{
		Cart:     controller.NewCartController(cartSvc),
		Checkout: controller.NewCheckoutController(checkoutSvc, cartSvc, paymentSvc, whatsapp, middleware.NewSyncRateLimiter()),
		Shipping: controller.NewShippingController(shippingSvc, cartSvc),
		Order:    controller.NewOrderController(orderSvc),
		Webhook:  controller.NewWebhookController(paymentSvc),
		Store:    controller.NewStoreController(paymentSvc),
	})

	return &testEnv{db: db, engine: engine, store: store, product: product}
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (e *testEnv) performRequest(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func storefront(session string) map[string]string {
	h := map[string]string{middleware.HeaderStoreSlug: "demo"}
	if session != "" {
		h[controller.HeaderCartSession] = session
	}
	return h
}

func ownerHeaders(t *testing.T, storeID int64) map[string]string {
	token, err := middleware.GenerateAccessToken(100, storeID, "dona", middleware.RoleStoreOwner)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"customer_name":  "Maria Silva",
		"customer_email": "maria@example.com",
		"payment_method": model.PaymentMethodWhatsApp,
		"shipping_address": map[string]string{
			"street": "Av. Paulista", "number": "1000", "city": "São Paulo", "state": "SP", "zip": "01310-100",
		},
	}
}

func TestSwaggerUI(t *testing.T) {
	env := setupTestEnv(t)

	w, _ := env.performRequest(t, http.MethodGet, "/swagger/index.html", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}

// ==================== 购物车 ====================

func TestCartAPI(t *testing.T) {
	env := setupTestEnv(t)

	w, _ := env.performRequest(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	t.Run("加入购物车", func(t *testing.T) {
		w, resp := env.performRequest(t, http.MethodPost, "/api/cart/items",
			map[string]interface{}{"product_id": env.product.ID, "quantity": 2}, storefront("s1"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var summary struct {
			ItemsCount int     `json:"items_count"`
			Subtotal   float64 `json:"subtotal"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &summary))
		assert.Equal(t, 2, summary.ItemsCount)
		assert.InDelta(t, 99.80, summary.Subtotal, 0.001)
	})

	t.Run("按域名识别店铺", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cart?session_id=s1", nil)
		req.Host = "loja.demo.com.br"
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"items_count":2`)
	})

	t.Run("缺少租户", func(t *testing.T) {
		w, resp := env.performRequest(t, http.MethodGet, "/api/cart", nil, map[string]string{controller.HeaderCartSession: "s1"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("缺少会话", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodPost, "/api/cart/items",
			map[string]interface{}{"product_id": env.product.ID, "quantity": 1}, storefront(""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("数量非法", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodPost, "/api/cart/items",
			map[string]interface{}{"product_id": env.product.ID, "quantity": 0}, storefront("s1"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("商品不存在", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodPost, "/api/cart/items",
			map[string]interface{}{"product_id": 9999, "quantity": 1}, storefront("s1"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("非法商品行 ID", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodDelete, "/api/cart/items/abc", nil, storefront("s1"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// ==================== 结账与订单 ====================

type checkoutResult struct {
	OrderID     int64   `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	Total       float64 `json:"total"`
	WhatsAppURL string  `json:"whatsapp_url"`
	Payment     *struct {
		Gateway   string `json:"gateway"`
		PaymentID string `json:"payment_id"`
	} `json:"payment"`
}

func (e *testEnv) checkout(t *testing.T, session string) checkoutResult {
	w, _ := e.performRequest(t, http.MethodPost, "/api/cart/items",
		map[string]interface{}{"product_id": e.product.ID, "quantity": 1}, storefront(session))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, resp := e.performRequest(t, http.MethodPost, "/api/checkout", checkoutBody(), storefront(session))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result checkoutResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	return result
}

func TestCheckoutAPI(t *testing.T) {
	env := setupTestEnv(t)

	result := env.checkout(t, "buyer")
	assert.True(t, strings.HasPrefix(result.OrderNumber, "ORD-"))
	assert.InDelta(t, 49.90, result.Total, 0.001)
	assert.True(t, strings.HasPrefix(result.WhatsAppURL, "https://wa.me/5511999999999?text="))
	require.NotNil(t, result.Payment)
	assert.Equal(t, model.PaymentMethodWhatsApp, result.Payment.Gateway)

	t.Run("同一购物车立即重复提交被限流", func(t *testing.T) {
		w, resp := env.performRequest(t, http.MethodPost, "/api/checkout", checkoutBody(), storefront("buyer"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, resp.Error, "秒后重试")
	})

	t.Run("空购物车", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodPost, "/api/checkout", checkoutBody(), storefront("empty"))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("缺少必填字段", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodPost, "/api/checkout",
			map[string]interface{}{"payment_method": "whatsapp"}, storefront("bad"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("公开查询订单状态", func(t *testing.T) {
		path := fmt.Sprintf("/api/orders/%s/status", result.OrderNumber)
		w, resp := env.performRequest(t, http.MethodGet, path, nil, storefront(""))
		require.Equal(t, http.StatusOK, w.Code)

		var status struct {
			PaymentStatus  string `json:"payment_status"`
			DeliveryStatus string `json:"delivery_status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &status))
		assert.Equal(t, model.PaymentStatusPending, status.PaymentStatus)
		assert.Equal(t, model.DeliveryStatusPending, status.DeliveryStatus)

		w, _ = env.performRequest(t, http.MethodGet, "/api/orders/ORD-NOPE/status", nil, storefront(""))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("支付方式", func(t *testing.T) {
		w, resp := env.performRequest(t, http.MethodGet, "/api/store/payment-methods", nil, storefront(""))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"methods":["whatsapp"]}`, string(resp.Data))
	})
}

// ==================== 管理端 ====================

func TestAdminOrderAPI(t *testing.T) {
	env := setupTestEnv(t)
	paid := env.checkout(t, "a")
	open := env.checkout(t, "b")
	owner := ownerHeaders(t, env.store.ID)

	t.Run("未认证", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodGet, "/api/admin/orders", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("订单列表", func(t *testing.T) {
		w, resp := env.performRequest(t, http.MethodGet, "/api/admin/orders?page=1&page_size=10", nil, owner)
		require.Equal(t, http.StatusOK, w.Code)
		var list struct {
			Total int64 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		assert.Equal(t, int64(2), list.Total)
	})

	t.Run("标记已支付后不可取消", func(t *testing.T) {
		w, _ := env.performRequest(t, http.MethodPatch, fmt.Sprintf("/api/admin/orders/%d/mark-paid", paid.OrderID), nil, owner)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, _ = env.performRequest(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/cancel", paid.OrderID), nil, owner)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("配送状态", func(t *testing.T) {
		path := fmt.Sprintf("/api/admin/orders/%d/delivery-status", paid.OrderID)
		w, _ := env.performRequest(t, http.MethodPatch, path, map[string]string{"status": "shipped"}, owner)
		assert.Equal(t, http.StatusOK, w.Code)

		w, _ = env.performRequest(t, http.MethodPatch, path, map[string]string{"status": "processing"}, owner)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w, _ = env.performRequest(t, http.MethodPatch, path, map[string]string{}, owner)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("取消待支付订单", func(t *testing.T) {
		w, resp := env.performRequest(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/cancel", open.OrderID), nil, owner)
		require.Equal(t, http.StatusOK, w.Code)

		var detail struct {
			Order struct {
				PaymentStatus  string `json:"payment_status"`
				DeliveryStatus string `json:"delivery_status"`
			} `json:"order"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &detail))
		assert.Equal(t, model.PaymentStatusCancelled, detail.Order.PaymentStatus)
		assert.Equal(t, model.DeliveryStatusCancelled, detail.Order.DeliveryStatus)
	})

	t.Run("其他店主看不到订单", func(t *testing.T) {
		other := &model.Store{Name: "Outra", Slug: "outra", Status: model.StoreStatusActive}
		require.NoError(t, env.db.Create(other).Error)

		w, _ := env.performRequest(t, http.MethodGet, fmt.Sprintf("/api/admin/orders/%d", paid.OrderID), nil, ownerHeaders(t, other.ID))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAdminShippingAPI(t *testing.T) {
	env := setupTestEnv(t)
	owner := ownerHeaders(t, env.store.ID)

	w, resp := env.performRequest(t, http.MethodPost, "/api/admin/shipping",
		map[string]interface{}{"name": "Motoboy", "city": "São Paulo", "state": "SP", "price": 15}, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rule struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rule))

	w, _ = env.performRequest(t, http.MethodPost, "/api/admin/shipping",
		map[string]interface{}{"name": "Errado", "state": "SPX", "price": 1}, owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.performRequest(t, http.MethodPost, "/api/shipping/calculate",
		map[string]string{"zip_code": "01310-100"}, storefront(""))
	require.Equal(t, http.StatusOK, w.Code)
	// 无邮编解析时有地区限制的规则不出现
	assert.Contains(t, w.Body.String(), `"options":[]`)

	w, _ = env.performRequest(t, http.MethodDelete, fmt.Sprintf("/api/admin/shipping/%d", rule.ID), nil, owner)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.performRequest(t, http.MethodDelete, fmt.Sprintf("/api/admin/shipping/%d", rule.ID), nil, owner)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ==================== 回调 ====================

func TestWebhookAPI(t *testing.T) {
	env := setupTestEnv(t)

	w, _ := env.performRequest(t, http.MethodPost, "/api/webhooks/stripe", map[string]string{"type": "payment_intent.succeeded"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := map[string]interface{}{"action": "payment.updated", "data": map[string]interface{}{"id": 123}}
	for i := 0; i < 2; i++ {
		w, _ = env.performRequest(t, http.MethodPost, "/api/webhooks/mercadopago", body, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	var jobs int64
	require.NoError(t, env.db.Model(&model.WebhookJob{}).Count(&jobs).Error)
	assert.Equal(t, int64(1), jobs)
}
