package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"storefront_checkout/internal/controller"
	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/payment"
	"storefront_checkout/pkg/metrics"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Cart     *controller.CartController
	Checkout *controller.CheckoutController
	Shipping *controller.ShippingController
	Order    *controller.OrderController
	Webhook  *controller.WebhookController
	Store    *controller.StoreController
}

// NewEngine 创建 gin 引擎并挂载通用中间件
func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, stores middleware.StoreFinder, ctl Controllers) {
	// 1. 运维
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	// 接口文档：swag init -g cmd/main.go 生成 docs 后由 /swagger/index.html 查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		// 2. 网关回调：不识别店铺、不鉴权
		webhooks := api.Group("/webhooks")
		{
			// POST /api/webhooks/stripe
			webhooks.POST("/stripe", ctl.Webhook.Handle(payment.StripeGatewayName))
			// POST /api/webhooks/mercadopago
			webhooks.POST("/mercadopago", ctl.Webhook.Handle(payment.MercadoPagoGatewayName))
		}

		// 3. 管理端：店主 / 平台管理员
		admin := api.Group("/admin",
			middleware.JWTAuth(),
			middleware.RequireRole(middleware.RoleStoreOwner, middleware.RolePlatformAdmin),
			middleware.RequireStoreScope(),
		)
		{
			orders := admin.Group("/orders")
			{
				orders.GET("", ctl.Order.List)
				orders.GET("/:id", ctl.Order.GetByID)
				orders.PATCH("/:id/payment-status", ctl.Order.UpdatePaymentStatus)
				orders.PATCH("/:id/delivery-status", ctl.Order.UpdateDeliveryStatus)
				orders.PATCH("/:id/mark-paid", ctl.Order.MarkAsPaid)
				orders.POST("/:id/cancel", ctl.Order.Cancel)
			}
			shipping := admin.Group("/shipping")
			{
				shipping.GET("", ctl.Shipping.ListRules)
				shipping.POST("", ctl.Shipping.CreateRule)
				shipping.PUT("/:id", ctl.Shipping.UpdateRule)
				shipping.DELETE("/:id", ctl.Shipping.DeleteRule)
			}
		}

		// 4. 店铺前台：按请求识别租户，登录可选
		storefront := api.Group("", middleware.ResolveTenant(stores), middleware.OptionalAuth())
		{
			// GET /api/store/payment-methods
			storefront.GET("/store/payment-methods", ctl.Store.PaymentMethods)

			cart := storefront.Group("/cart")
			{
				cart.GET("", ctl.Cart.Get)
				cart.POST("/items", ctl.Cart.AddItem)
				cart.PATCH("/items/:itemId", ctl.Cart.UpdateItem)
				cart.DELETE("/items/:itemId", ctl.Cart.RemoveItem)
			}

			// POST /api/checkout
			storefront.POST("/checkout", ctl.Checkout.Checkout)
			// POST /api/shipping/calculate
			storefront.POST("/shipping/calculate", ctl.Shipping.Calculate)
			// GET /api/orders/:orderNumber/status
			storefront.GET("/orders/:orderNumber/status", ctl.Order.PublicStatus)
		}
	}
}
