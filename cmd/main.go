package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront_checkout/internal/controller"
	"storefront_checkout/internal/middleware"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/payment"
	"storefront_checkout/internal/repository"
	"storefront_checkout/internal/router"
	"storefront_checkout/internal/service"
	"storefront_checkout/internal/task"
	"storefront_checkout/pkg/config"
	"storefront_checkout/pkg/database"
	"storefront_checkout/pkg/kafka"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"
	"storefront_checkout/pkg/utils"
)

// @title 多店铺结账与订单服务 API
// @version 1.0
// @description 购物车、运费、结账、支付回调与订单管理
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "多店铺结账与订单服务",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（YAML）",
				EnvVars: []string{"STOREFRONT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动 HTTP 服务与后台任务",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "仅执行数据表迁移",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logger.L().Fatal("启动失败", zap.Error(err))
	}
}

// allModels 需要自动迁移的表
func allModels() []interface{} {
	return []interface{}{
		// Tenant
		&model.Store{}, &model.StoreDomain{},
		// Catalog
		&model.Product{}, &model.ProductVariation{},
		// Cart
		&model.Cart{}, &model.CartItem{},
		// Order
		&model.Order{}, &model.OrderItem{}, &model.Payment{},
		// Shipping
		&model.ShippingOption{},
		// Async
		&model.OutboxEvent{}, &model.WebhookJob{},
	}
}

func bootstrap(c *cli.Context) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.InitLogger(cfg)
	metrics.InitMetrics(cfg.Metrics.Prefix)

	db, err := database.InitDB(cfg, log, allModels()...)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func migrate(c *cli.Context) error {
	_, log, _, err := bootstrap(c)
	if err != nil {
		return err
	}
	log.Info("迁移完成")
	return nil
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	Repos       *Repositories
	Services    *Services
	Controllers router.Controllers
	Tasks       *task.TaskManager
	Kafka       *kafka.Client
}

// Repositories 仓库集合
type Repositories struct {
	Store          repository.StoreRepository
	Product        repository.ProductRepository
	Cart           repository.CartRepository
	Order          repository.OrderRepository
	Payment        repository.PaymentRepository
	ShippingOption repository.ShippingOptionRepository
	Outbox         repository.OutboxRepository
	WebhookJob     repository.WebhookJobRepository
	OrderUow       *repository.OrderUnitOfWork
}

// Services 服务集合
type Services struct {
	Cart     *service.CartService
	Shipping *service.ShippingService
	Checkout *service.CheckoutService
	Order    *service.OrderService
	Payment  *service.PaymentService
	WhatsApp *service.WhatsAppService
	Correios *service.CorreiosClient
}

func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Store:          repository.NewStoreRepository(db),
		Product:        repository.NewProductRepository(db),
		Cart:           repository.NewCartRepository(db),
		Order:          repository.NewOrderRepository(db),
		Payment:        repository.NewPaymentRepository(db),
		ShippingOption: repository.NewShippingOptionRepository(db),
		Outbox:         repository.NewOutboxRepository(db),
		WebhookJob:     repository.NewWebhookJobRepository(db),
		OrderUow:       repository.NewOrderUnitOfWork(db),
	}
}

func initDependencies(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Dependencies {
	repos := initRepositories(db)

	// -------- 运费 --------
	correios := service.NewCorreiosClient(service.CorreiosConfig{
		BaseURL:  cfg.Correios.BaseURL,
		Timeout:  cfg.Correios.Timeout,
		TokenTTL: cfg.Correios.TokenTTL,
	}, utils.NewTTLCache(), log)
	postal := service.NewViaCEPClient(cfg.Postal.BaseURL, cfg.Postal.Timeout, log)

	// -------- 支付网关 --------
	whatsapp := service.NewWhatsAppService()
	registry := payment.NewRegistry(
		payment.NewStripeGateway(payment.StripeGatewayConfig{
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Logger:        log,
		}),
		payment.NewMercadoPagoGateway(utils.NewHTTPClient(cfg.MercadoPago.BaseURL, 15*time.Second), log).
			WithNotificationURL(cfg.MercadoPago.NotificationURL),
		payment.NewManualGateway(whatsapp.OrderLink),
	)

	// -------- 业务服务 --------
	events := service.NewEventPublisher()
	services := &Services{
		WhatsApp: whatsapp,
		Correios: correios,
	}
	services.Cart = service.NewCartService(repos.Cart, repos.Product, log)
	services.Shipping = service.NewShippingService(repos.ShippingOption, postal, correios, log)
	services.Checkout = service.NewCheckoutService(repos.OrderUow, repos.Cart, services.Shipping, registry, events, log)
	services.Order = service.NewOrderService(repos.OrderUow, repos.Order, repos.Payment, events, log)
	services.Payment = service.NewPaymentService(repos.OrderUow, repos.Payment, repos.WebhookJob, repos.Store, registry, services.Order, log)

	// -------- 后台任务 --------
	kafkaClient := kafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
	handlers := []service.EventHandler{
		service.NewActivityLogHandler(log),
		service.NewKafkaEventHandler(kafkaClient),
		service.NewStoreWhatsAppNotifier(repos.Store, repos.Order, whatsapp, log),
	}
	webhookWorker := task.NewWebhookWorker(repos.WebhookJob, services.Payment, task.WebhookWorkerConfig{
		Workers:       cfg.Webhook.Workers,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
		RetryInterval: cfg.Webhook.RetryInterval,
	}, log)
	services.Payment.SetDispatcher(webhookWorker)

	limiter := middleware.NewSyncRateLimiter()
	tasks := task.NewTaskManager(log)
	tasks.Add("outbox_relay", task.NewOutboxRelayTask(repos.Outbox, handlers, task.OutboxRelayConfig{
		Interval:      cfg.Outbox.Interval,
		BatchSize:     cfg.Outbox.BatchSize,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
		RetryInterval: cfg.Outbox.RetryInterval,
	}, log))
	tasks.Add("webhook_worker", webhookWorker)
	tasks.Add("maintenance", task.NewMaintenanceTask(map[string]task.Sweeper{
		"correios_tokens":  task.SweeperFunc(correios.SweepTokens),
		"checkout_limiter": task.SweeperFunc(func() int { return limiter.Sweep(time.Minute) }),
	}, log))

	// -------- Controller 层 --------
	controllers := router.Controllers{
		Cart:     controller.NewCartController(services.Cart),
		Checkout: controller.NewCheckoutController(services.Checkout, services.Cart, services.Payment, whatsapp, limiter),
		Shipping: controller.NewShippingController(services.Shipping, services.Cart),
		Order:    controller.NewOrderController(services.Order),
		Webhook:  controller.NewWebhookController(services.Payment),
		Store:    controller.NewStoreController(services.Payment),
	}

	return &Dependencies{
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
		Tasks:       tasks,
		Kafka:       kafkaClient,
	}
}

// ==================== 启动 ====================

func serve(c *cli.Context) error {
	cfg, log, db, err := bootstrap(c)
	if err != nil {
		return err
	}

	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenTTL: 2 * time.Hour,
		Issuer:         cfg.JWT.Issuer,
	})

	deps := initDependencies(cfg, db, log)
	if err := deps.Tasks.Start(); err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.NewEngine(log)
	router.InitRoutes(r, deps.Repos.Store, deps.Controllers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP 服务已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP 服务异常退出", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP 服务关闭失败", zap.Error(err))
	}

	deps.Tasks.Stop()
	if err := deps.Kafka.Close(); err != nil {
		log.Warn("关闭 Kafka 客户端失败", zap.Error(err))
	}
	_ = log.Sync()
	return nil
}
