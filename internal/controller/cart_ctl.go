package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/service"
)

// CartController 购物车控制器
type CartController struct {
	svc *service.CartService
}

// NewCartController 创建购物车控制器
func NewCartController(svc *service.CartService) *CartController {
	return &CartController{svc: svc}
}

// Get 购物车汇总
// @Summary 购物车汇总
// @Tags Cart (购物车)
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param X-Cart-Session header string false "匿名购物车会话"
// @Success 200 {object} map[string]interface{} "data: CartSummaryResponse"
// @Router /api/cart [get]
func (c *CartController) Get(ctx *gin.Context) {
	store, ok := currentStore(ctx)
	if !ok {
		return
	}
	cart, ok := resolveCart(ctx, c.svc, store, "")
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": service.BuildCartSummary(cart)})
}

// AddItem 加入购物车
// @Summary 加入购物车
// @Tags Cart (购物车)
// @Accept json
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param X-Cart-Session header string false "匿名购物车会话"
// @Param body body dto.AddCartItemRequest true "商品与数量"
// @Success 201 {object} map[string]interface{} "data: CartSummaryResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/cart/items [post]
func (c *CartController) AddItem(ctx *gin.Context) {
	var req dto.AddCartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := currentStore(ctx)
	if !ok {
		return
	}
	cart, ok := resolveCart(ctx, c.svc, store, req.SessionID)
	if !ok {
		return
	}

	if _, err := c.svc.AddItem(ctx.Request.Context(), store, cart, req.ProductID, req.VariationID, req.Quantity); err != nil {
		respondError(ctx, err)
		return
	}

	summary, err := c.svc.GetCartSummary(ctx.Request.Context(), store, cart)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"data": summary})
}

// UpdateItem 修改数量
// @Summary 修改购物车数量
// @Tags Cart (购物车)
// @Accept json
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param X-Cart-Session header string false "匿名购物车会话"
// @Param itemId path int true "购物车条目 ID"
// @Param body body dto.UpdateCartItemRequest true "新数量"
// @Success 200 {object} map[string]interface{} "data: CartSummaryResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/cart/items/{itemId} [patch]
func (c *CartController) UpdateItem(ctx *gin.Context) {
	itemID, ok := parseID(ctx, "itemId")
	if !ok {
		return
	}
	var req dto.UpdateCartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := currentStore(ctx)
	if !ok {
		return
	}
	cart, ok := resolveCart(ctx, c.svc, store, "")
	if !ok {
		return
	}

	if err := c.svc.UpdateItemQuantity(ctx.Request.Context(), cart, itemID, req.Quantity); err != nil {
		respondError(ctx, err)
		return
	}

	summary, err := c.svc.GetCartSummary(ctx.Request.Context(), store, cart)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": summary})
}

// RemoveItem 删除商品行
// @Summary 删除购物车条目
// @Tags Cart (购物车)
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param X-Cart-Session header string false "匿名购物车会话"
// @Param itemId path int true "购物车条目 ID"
// @Success 200 {object} map[string]interface{} "data: CartSummaryResponse"
// @Failure 404 {object} map[string]string "资源不存在"
// @Router /api/cart/items/{itemId} [delete]
func (c *CartController) RemoveItem(ctx *gin.Context) {
	itemID, ok := parseID(ctx, "itemId")
	if !ok {
		return
	}

	store, ok := currentStore(ctx)
	if !ok {
		return
	}
	cart, ok := resolveCart(ctx, c.svc, store, "")
	if !ok {
		return
	}

	if err := c.svc.RemoveItem(ctx.Request.Context(), cart, itemID); err != nil {
		respondError(ctx, err)
		return
	}

	summary, err := c.svc.GetCartSummary(ctx.Request.Context(), store, cart)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": summary})
}
