package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/service"
)

// OrderController 订单控制器
type OrderController struct {
	svc *service.OrderService
}

// NewOrderController 创建订单控制器
func NewOrderController(svc *service.OrderService) *OrderController {
	return &OrderController{svc: svc}
}

// PublicStatus 顾客按订单号查询状态
// @Summary 按订单号查询状态
// @Tags Order (订单)
// @Produce json
// @Param X-Store-Id header int false "店铺 ID，缺省时按 X-Store-Slug / Host 识别"
// @Param orderNumber path string true "订单号"
// @Success 200 {object} map[string]interface{} "data: PublicOrderStatusResponse"
// @Failure 404 {object} map[string]string "资源不存在"
// @Router /api/orders/{orderNumber}/status [get]
func (c *OrderController) PublicStatus(ctx *gin.Context) {
	store, ok := currentStore(ctx)
	if !ok {
		return
	}

	resp, err := c.svc.GetPublicStatus(ctx.Request.Context(), store.ID, ctx.Param("orderNumber"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": resp})
}

// ==================== 订单列表与详情（管理端） ====================

// List 订单列表
// @Summary 订单列表
// @Tags Admin Order (订单管理)
// @Produce json
// @Security BearerAuth
// @Param payment_status query string false "支付状态"
// @Param delivery_status query string false "配送状态"
// @Param keyword query string false "订单号 / 客户名 / 邮箱"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量，上限 100" default(20)
// @Success 200 {object} map[string]interface{} "data: ListOrdersResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Router /api/admin/orders [get]
func (c *OrderController) List(ctx *gin.Context) {
	var req dto.ListOrdersRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := c.svc.ListOrders(ctx.Request.Context(), middleware.GetStoreID(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetByID 订单详情
// @Summary 订单详情
// @Tags Admin Order (订单管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单 ID"
// @Success 200 {object} map[string]interface{} "data: OrderDetailResponse"
// @Failure 404 {object} map[string]string "资源不存在"
// @Router /api/admin/orders/{id} [get]
func (c *OrderController) GetByID(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	resp, err := c.svc.GetOrderDetail(ctx.Request.Context(), middleware.GetStoreID(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": resp})
}

// ==================== 订单状态更新（管理端） ====================

type statusUpdater func(ctx context.Context, storeID, orderID int64, status string) (*model.Order, error)

func (c *OrderController) updateStatus(ctx *gin.Context, update statusUpdater) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.respondOrder(ctx, func(storeID int64) (*model.Order, error) {
		return update(ctx.Request.Context(), storeID, id, req.Status)
	})
}

func (c *OrderController) respondOrder(ctx *gin.Context, fn func(storeID int64) (*model.Order, error)) {
	order, err := fn(middleware.GetStoreID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp, err := c.svc.GetOrderDetail(ctx.Request.Context(), order.StoreID, order.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdatePaymentStatus 修改支付状态
// @Summary 修改支付状态
// @Tags Admin Order (订单管理)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单 ID"
// @Param body body dto.UpdateStatusRequest true "目标状态"
// @Success 200 {object} map[string]interface{} "data: OrderDetailResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/admin/orders/{id}/payment-status [patch]
func (c *OrderController) UpdatePaymentStatus(ctx *gin.Context) {
	c.updateStatus(ctx, c.svc.UpdatePaymentStatus)
}

// UpdateDeliveryStatus 修改配送状态
// @Summary 修改配送状态
// @Tags Admin Order (订单管理)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单 ID"
// @Param body body dto.UpdateStatusRequest true "目标状态"
// @Success 200 {object} map[string]interface{} "data: OrderDetailResponse"
// @Failure 400 {object} map[string]string "参数错误"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/admin/orders/{id}/delivery-status [patch]
func (c *OrderController) UpdateDeliveryStatus(ctx *gin.Context) {
	c.updateStatus(ctx, c.svc.UpdateDeliveryStatus)
}

// MarkAsPaid 标记已支付
// @Summary 标记已支付
// @Tags Admin Order (订单管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单 ID"
// @Success 200 {object} map[string]interface{} "data: OrderDetailResponse"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/admin/orders/{id}/mark-paid [patch]
func (c *OrderController) MarkAsPaid(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	c.respondOrder(ctx, func(storeID int64) (*model.Order, error) {
		return c.svc.MarkAsPaid(ctx.Request.Context(), storeID, id)
	})
}

// Cancel 取消订单
// @Summary 取消订单
// @Description 回补库存并记录状态历史
// @Tags Admin Order (订单管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单 ID"
// @Success 200 {object} map[string]interface{} "data: OrderDetailResponse"
// @Failure 404 {object} map[string]string "资源不存在"
// @Failure 422 {object} map[string]string "业务校验失败"
// @Router /api/admin/orders/{id}/cancel [post]
func (c *OrderController) Cancel(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	c.respondOrder(ctx, func(storeID int64) (*model.Order, error) {
		return c.svc.CancelOrder(ctx.Request.Context(), storeID, id)
	})
}
