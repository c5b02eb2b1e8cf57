package service

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/payment"
	"storefront_checkout/internal/repository"
)

// ==================== 辅助函数 ====================

func setupServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	// 内存库每个连接独立，固定单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取连接池失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.Store{}, &model.StoreDomain{},
		&model.Product{}, &model.ProductVariation{},
		&model.Cart{}, &model.CartItem{},
		&model.Order{}, &model.OrderItem{}, &model.Payment{},
		&model.ShippingOption{},
		&model.OutboxEvent{}, &model.WebhookJob{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func seedStore(t *testing.T, db *gorm.DB, slug string) *model.Store {
	store := &model.Store{
		Name:     "Loja " + slug,
		Slug:     slug,
		WhatsApp: "+55 (11) 99999-9999",
		Status:   model.StoreStatusActive,
	}
	if err := db.Create(store).Error; err != nil {
		t.Fatalf("创建店铺失败: %v", err)
	}
	return store
}

func seedProduct(t *testing.T, db *gorm.DB, storeID int64, name string, price int64, stock int) *model.Product {
	product := &model.Product{
		StoreID:     storeID,
		Name:        name,
		Slug:        name,
		PriceAmount: price,
		Stock:       stock,
		Active:      true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}
	return product
}

func seedVariation(t *testing.T, db *gorm.DB, productID int64, name string, price *int64, stock int) *model.ProductVariation {
	variation := &model.ProductVariation{
		ProductID:   productID,
		Name:        name,
		PriceAmount: price,
		Stock:       stock,
	}
	if err := db.Create(variation).Error; err != nil {
		t.Fatalf("创建变体失败: %v", err)
	}
	return variation
}

func seedFixedOption(t *testing.T, db *gorm.DB, storeID int64, name, city, state string, price int64) *model.ShippingOption {
	option := &model.ShippingOption{
		StoreID:     storeID,
		Name:        name,
		City:        city,
		State:       state,
		PriceAmount: price,
		Active:      true,
	}
	if err := db.Create(option).Error; err != nil {
		t.Fatalf("创建运费规则失败: %v", err)
	}
	return option
}

func sessionIdentity(session string) repository.CartIdentity {
	return repository.CartIdentity{SessionID: session}
}

// outboxCount 某订单某主题的发件箱事件数
func outboxCount(t *testing.T, db *gorm.DB, topic, orderNumber string) int {
	list, err := repository.NewOutboxRepository(db).ListByKey(context.Background(), topic, orderNumber)
	if err != nil {
		t.Fatalf("查询发件箱失败: %v", err)
	}
	return len(list)
}

// ==================== 测试桩 ====================

// stubEstimator 固定返回的承运商报价
type stubEstimator struct {
	quotes []CarrierQuote
	calls  int
}

func (s *stubEstimator) Calculate(context.Context, string, string, Parcel, *model.CarrierCredentials) []CarrierQuote {
	s.calls++
	return s.quotes
}

// stubPostal 固定的邮编解析
type stubPostal struct {
	addresses map[string]*PostalAddress
}

func (s *stubPostal) Lookup(_ context.Context, zip string) (*PostalAddress, error) {
	if addr, ok := s.addresses[zip]; ok {
		return addr, nil
	}
	return nil, ErrPostalCodeNotFound
}

// checkoutFixture 结账相关服务的组合
type checkoutFixture struct {
	db       *gorm.DB
	store    *model.Store
	carts    *CartService
	shipping *ShippingService
	checkout *CheckoutService
	orders   *OrderService
	events   *EventPublisher
	uow      *repository.OrderUnitOfWork
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	db := setupServiceTestDB(t)
	store := seedStore(t, db, "demo")

	uow := repository.NewOrderUnitOfWork(db)
	events := NewEventPublisher()
	registry := payment.NewRegistry(payment.NewManualGateway(nil))

	carts := NewCartService(repository.NewCartRepository(db), repository.NewProductRepository(db), nil)
	shipping := NewShippingService(repository.NewShippingOptionRepository(db), nil, &stubEstimator{}, nil)

	return &checkoutFixture{
		db:       db,
		store:    store,
		carts:    carts,
		shipping: shipping,
		checkout: NewCheckoutService(uow, repository.NewCartRepository(db), shipping, registry, events, nil),
		orders:   NewOrderService(uow, repository.NewOrderRepository(db), repository.NewPaymentRepository(db), events, nil),
		events:   events,
		uow:      uow,
	}
}

// cartWith 创建会话购物车并加入商品
func (f *checkoutFixture) cartWith(t *testing.T, session string, lines ...cartLine) *model.Cart {
	ctx := context.Background()
	cart, err := f.carts.GetOrCreateCart(ctx, f.store, sessionIdentity(session))
	if err != nil {
		t.Fatalf("创建购物车失败: %v", err)
	}
	for _, line := range lines {
		if _, err := f.carts.AddItem(ctx, f.store, cart, line.productID, line.variationID, line.qty); err != nil {
			t.Fatalf("加入购物车失败: %v", err)
		}
	}
	return cart
}

type cartLine struct {
	productID   int64
	variationID *int64
	qty         int
}
