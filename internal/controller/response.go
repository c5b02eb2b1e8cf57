package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/internal/service"
	"storefront_checkout/pkg/logger"
)

// HeaderCartSession 匿名购物车会话头
const HeaderCartSession = "X-Cart-Session"

var errMissingStore = errors.New("店铺不存在或已停用")

// respondError 领域错误 → HTTP 状态码；未知错误不暴露细节
func respondError(ctx *gin.Context, err error) {
	switch {
	case service.IsValidationError(err):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case service.IsForbidden(err):
		ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case service.IsNotFound(err):
		ctx.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage(err)})
	default:
		logger.FromContext(ctx.Request.Context()).Error("[HTTP] 请求处理失败",
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "资源不存在"
	}
	return err.Error()
}

// parseID 解析路径参数
func parseID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID"})
		return 0, false
	}
	return id, true
}

// currentStore 租户中间件识别出的店铺
func currentStore(ctx *gin.Context) (*model.Store, bool) {
	store := middleware.GetStore(ctx)
	if store == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": errMissingStore.Error()})
		return nil, false
	}
	return store, true
}

// cartIdentity 已登录用户优先，其次 X-Cart-Session 头、请求体或 query 中的 session_id
func cartIdentity(ctx *gin.Context, bodySessionID string) repository.CartIdentity {
	if userID := middleware.GetUserID(ctx); userID > 0 {
		return repository.CartIdentity{UserID: userID}
	}
	session := ctx.GetHeader(HeaderCartSession)
	if session == "" {
		session = bodySessionID
	}
	if session == "" {
		session = ctx.Query("session_id")
	}
	return repository.CartIdentity{SessionID: session}
}

// resolveCart 获取或创建当前购物车；缺少身份时返回 400
func resolveCart(ctx *gin.Context, carts *service.CartService, store *model.Store, bodySessionID string) (*model.Cart, bool) {
	identity := cartIdentity(ctx, bodySessionID)
	if identity.IsZero() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": service.ErrMissingCartIdentity.Error()})
		return nil, false
	}
	cart, err := carts.GetOrCreateCart(ctx.Request.Context(), store, identity)
	if err != nil {
		respondError(ctx, err)
		return nil, false
	}
	return cart, true
}
