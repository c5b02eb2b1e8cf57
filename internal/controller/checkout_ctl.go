package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/service"
	"storefront_checkout/pkg/logger"
)

// CheckoutController 结账控制器
type CheckoutController struct {
	checkout *service.CheckoutService
	carts    *service.CartService
	payments *service.PaymentService
	whatsapp *service.WhatsAppService
	limiter  *middleware.SyncRateLimiter
}

// NewCheckoutController 创建结账控制器
func NewCheckoutController(
	checkout *service.CheckoutService,
	carts *service.CartService,
	payments *service.PaymentService,
	whatsapp *service.WhatsAppService,
	limiter *middleware.SyncRateLimiter,
) *CheckoutController {
	if limiter == nil {
		limiter = middleware.NewSyncRateLimiter()
	}
	return &CheckoutController{
		checkout: checkout,
		carts:    carts,
		payments: payments,
		whatsapp: whatsapp,
		limiter:  limiter,
	}
}

// Checkout 提交订单
// @Summary 提交订单
// @Description 购物车转订单：复核库存、确认运费、扣减库存并按支付方式返回支付指引
// @Tags Checkout (结账)
// @Accept json
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param X-Cart-Session header string false "匿名购物车会话"
// @Param body body dto.CheckoutRequest true "顾客、地址、运费与支付方式"
// @Success 201 {object} map[string]interface{} "data: CheckoutResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Failure 429 {object} map[string]string "请求过于频繁"
// @Router /api/checkout [post]
func (c *CheckoutController) Checkout(ctx *gin.Context) {
	var req dto.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := currentStore(ctx)
	if !ok {
		return
	}
	cart, ok := resolveCart(ctx, c.carts, store, req.SessionID)
	if !ok {
		return
	}

	// 同一购物车限流
	result := c.limiter.Check(middleware.CheckoutKey(store.ID, cart.ID), middleware.CheckoutInterval)
	if !result.Allowed {
		ctx.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
		ctx.JSON(http.StatusTooManyRequests, gin.H{"error": middleware.RetryMessage(result.RetryAfter)})
		return
	}

	order, err := c.checkout.ProcessCheckout(ctx.Request.Context(), store, cart, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := dto.CheckoutResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Subtotal:       order.GetSubtotal(),
		ShippingCost:   order.GetShipping(),
		ShippingMethod: order.ShippingMethod,
		Total:          order.GetTotal(),
		PaymentStatus:  order.PaymentStatus,
		PaymentMethod:  order.PaymentMethod,
	}

	// 订单已提交，支付创建失败不回滚
	payment, err := c.payments.InitiatePayment(ctx.Request.Context(), store, order)
	if err != nil {
		logger.FromContext(ctx.Request.Context()).Warn("[Checkout] 创建支付失败",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
	} else {
		resp.Payment = payment
	}

	if order.PaymentMethod == model.PaymentMethodWhatsApp {
		resp.WhatsAppURL = c.whatsapp.OrderLink(store, order)
	}

	ctx.JSON(http.StatusCreated, gin.H{"data": resp})
}
