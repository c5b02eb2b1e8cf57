package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/service"
)

// ShippingController 运费控制器
type ShippingController struct {
	svc   *service.ShippingService
	carts *service.CartService
}

// NewShippingController 创建运费控制器
func NewShippingController(svc *service.ShippingService, carts *service.CartService) *ShippingController {
	return &ShippingController{svc: svc, carts: carts}
}

// ==================== 运费试算 ====================

// Calculate 按购物车与收货邮编列出可选运费
// @Summary 运费试算
// @Tags Shipping (运费)
// @Accept json
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param X-Cart-Session header string false "匿名购物车会话"
// @Param body body dto.CalculateShippingRequest true "收货邮编"
// @Success 200 {object} map[string]interface{} "data: CalculateShippingResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/shipping/calculate [post]
func (c *ShippingController) Calculate(ctx *gin.Context) {
	var req dto.CalculateShippingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := currentStore(ctx)
	if !ok {
		return
	}

	// 无购物车身份时按默认包裹试算
	var items []model.CartItem
	if identity := cartIdentity(ctx, req.SessionID); !identity.IsZero() {
		cart, err := c.carts.GetOrCreateCart(ctx.Request.Context(), store, identity)
		if err != nil {
			respondError(ctx, err)
			return
		}
		items = cart.Items
	}

	options, err := c.svc.CalculateShippingOptions(ctx.Request.Context(), store, req.ZipCode, items)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": dto.CalculateShippingResponse{
			ZipCode: req.ZipCode,
			Options: options,
		},
	})
}

// ==================== 固定运费规则（管理端） ====================

// ListRules 规则列表
// @Summary 固定运费规则列表
// @Tags Admin Shipping (运费管理)
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "data: []ShippingRuleVO"
// @Router /api/admin/shipping [get]
func (c *ShippingController) ListRules(ctx *gin.Context) {
	list, err := c.svc.ListRules(ctx.Request.Context(), middleware.GetStoreID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": list})
}

// CreateRule 新建规则
// @Summary 新建运费规则
// @Tags Admin Shipping (运费管理)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ShippingRuleRequest true "规则"
// @Success 201 {object} map[string]interface{} "data: ShippingRuleVO"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/admin/shipping [post]
func (c *ShippingController) CreateRule(ctx *gin.Context) {
	var req dto.ShippingRuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := c.svc.CreateRule(ctx.Request.Context(), middleware.GetStoreID(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"data": rule})
}

// UpdateRule 修改规则
// @Summary 修改运费规则
// @Tags Admin Shipping (运费管理)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "规则 ID"
// @Param body body dto.ShippingRuleRequest true "规则"
// @Success 200 {object} map[string]interface{} "data: ShippingRuleVO"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/admin/shipping/{id} [put]
func (c *ShippingController) UpdateRule(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req dto.ShippingRuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := c.svc.UpdateRule(ctx.Request.Context(), middleware.GetStoreID(ctx), id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": rule})
}

// DeleteRule 删除规则
// @Summary 删除运费规则
// @Tags Admin Shipping (运费管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "规则 ID"
// @Success 200 {object} map[string]string "删除成功"
// @Failure 404 {object} map[string]string "资源不存在"
// @Router /api/admin/shipping/{id} [delete]
func (c *ShippingController) DeleteRule(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	if err := c.svc.DeleteRule(ctx.Request.Context(), middleware.GetStoreID(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}
