package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/payment"
	"storefront_checkout/internal/service"
	"storefront_checkout/pkg/logger"
)

// 回调请求体上限
const maxWebhookBodyBytes = 1 << 20

// WebhookController 支付网关回调
type WebhookController struct {
	payments *service.PaymentService
}

// NewWebhookController 创建回调控制器
func NewWebhookController(payments *service.PaymentService) *WebhookController {
	return &WebhookController{payments: payments}
}

// Handle 接收指定网关的回调；解析成功即返回 200，重复回调同样返回 200
// @Summary 支付网关回调
// @Description 校验并入队后立即返回 200，重复回调同样返回 200
// @Tags Webhook (支付回调)
// @Accept json
// @Produce json
// @Param store_id query int false "MercadoPago 回调地址携带的店铺 ID"
// @Success 200 {object} dto.WebhookAckResponse
// @Failure 400 {object} map[string]string "参数错误"
// @Router /api/webhooks/stripe [post]
// @Router /api/webhooks/mercadopago [post]
func (c *WebhookController) Handle(gateway string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "读取回调内容失败"})
			return
		}

		// 创建支付时写入回调地址的店铺 ID，解析失败按未知处理
		storeID, _ := strconv.ParseInt(ctx.Query("store_id"), 10, 64)

		_, err = c.payments.IntakeWebhook(ctx.Request.Context(), gateway, storeID, payload, ctx.Request.Header)
		switch {
		case err == nil:
			ctx.JSON(http.StatusOK, dto.WebhookAckResponse{Status: "ok"})
		case errors.Is(err, payment.ErrGatewayNotRegistered):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, payment.ErrInvalidWebhook), errors.Is(err, payment.ErrWebhookUnsupported):
			logger.FromContext(ctx.Request.Context()).Warn("[Webhook] 回调校验失败",
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的支付回调"})
		default:
			respondError(ctx, err)
		}
	}
}
