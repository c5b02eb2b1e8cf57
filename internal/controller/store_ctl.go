package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/service"
)

// StoreController 店铺公开信息
type StoreController struct {
	payments *service.PaymentService
}

// NewStoreController 创建店铺控制器
func NewStoreController(payments *service.PaymentService) *StoreController {
	return &StoreController{payments: payments}
}

// PaymentMethods 店铺可用支付方式
// @Summary 店铺可用支付方式
// @Tags Store (店铺)
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Success 200 {object} map[string]interface{} "data: PaymentMethodsResponse"
// @Failure 404 {object} map[string]string "资源不存在"
// @Router /api/store/payment-methods [get]
func (c *StoreController) PaymentMethods(ctx *gin.Context) {
	store, ok := currentStore(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.PaymentMethodsResponse{Methods: c.payments.AvailableGateways(store)},
	})
}
