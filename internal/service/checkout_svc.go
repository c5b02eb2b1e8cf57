package service

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"
)

// 结账结果指标
const (
	checkoutResultSuccess  = "success"
	checkoutResultRejected = "rejected"
	checkoutResultError    = "error"
)

// GatewayAvailability 店铺可用支付方式
type GatewayAvailability interface {
	Available(store *model.Store) []string
}

// ShippingResolver 结账时确认运费
type ShippingResolver interface {
	ResolveSelectedOption(ctx context.Context, store *model.Store, destZip string, items []model.CartItem, optionID *int64, serviceCode string) (*ResolvedShipping, error)
}

// CheckoutService 结账编排
type CheckoutService struct {
	uow      *repository.OrderUnitOfWork
	carts    repository.CartRepository
	shipping ShippingResolver
	gateways GatewayAvailability
	events   *EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(
	uow *repository.OrderUnitOfWork,
	carts repository.CartRepository,
	shipping ShippingResolver,
	gateways GatewayAvailability,
	events *EventPublisher,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		uow:      uow,
		carts:    carts,
		shipping: shipping,
		gateways: gateways,
		events:   events,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// NewOrderNumber 全局唯一、不可猜测的订单号
// 熵取自 crypto/rand，同毫秒内不做单调递增
func NewOrderNumber() string {
	return "ORD-" + ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// ProcessCheckout 购物车 → 订单
// 1. 只读预检（空购物车、库存）
// 2. 事务外确认运费，持锁期间不做外部调用
// 3. 事务内加锁复核、建单、扣库存、清空购物车、写发件箱
func (s *CheckoutService) ProcessCheckout(ctx context.Context, store *model.Store, cart *model.Cart, req *dto.CheckoutRequest) (*model.Order, error) {
	order, err := s.processCheckout(ctx, store, cart, req)
	switch {
	case err == nil:
		metrics.RecordCheckout(checkoutResultSuccess)
	case IsValidationError(err) || IsNotFound(err):
		metrics.RecordCheckout(checkoutResultRejected)
	default:
		metrics.RecordCheckout(checkoutResultError)
		s.log.Error("[Checkout] 结账失败",
			zap.Int64("store_id", store.ID),
			zap.Int64("cart_id", cart.ID),
			zap.Error(err),
		)
	}
	return order, err
}

func (s *CheckoutService) processCheckout(ctx context.Context, store *model.Store, cart *model.Cart, req *dto.CheckoutRequest) (*model.Order, error) {
	if !s.paymentMethodAvailable(store, req.PaymentMethod) {
		return nil, ErrPaymentMethodUnavailable
	}

	snapshot, err := s.carts.GetWithItems(ctx, store.ID, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for i := range snapshot.Items {
		if err := checkLineStock(&snapshot.Items[i], snapshot.Items[i].Product, snapshot.Items[i].Variation); err != nil {
			return nil, err
		}
	}

	var shipping ResolvedShipping
	if req.HasShippingSelection() && req.DestinationZip() != "" {
		resolved, err := s.shipping.ResolveSelectedOption(ctx, store, req.DestinationZip(), snapshot.Items, req.ShippingOptionID, req.ShippingService)
		if err != nil {
			return nil, err
		}
		shipping = *resolved
	}

	var order *model.Order
	err = s.uow.Transaction(ctx, func(uow *repository.OrderUnitOfWork) error {
		created, err := s.createOrder(ctx, uow, store, cart.ID, req, shipping)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("[Checkout] 订单已创建",
		zap.Int64("store_id", store.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.TotalAmount),
	)
	return order, nil
}

// lockedLine 加锁后的购物车行
type lockedLine struct {
	item      *model.CartItem
	product   *model.Product
	variation *model.ProductVariation
}

func (s *CheckoutService) createOrder(
	ctx context.Context,
	uow *repository.OrderUnitOfWork,
	store *model.Store,
	cartID int64,
	req *dto.CheckoutRequest,
	shipping ResolvedShipping,
) (*model.Order, error) {
	cart, err := uow.Carts.LockWithItems(ctx, store.ID, cartID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]lockedLine, 0, len(cart.Items))
	for i := range cart.Items {
		line, err := s.lockLine(ctx, uow, store, &cart.Items[i])
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	subtotal := cart.Subtotal()
	order := &model.Order{
		StoreID:         store.ID,
		OrderNumber:     NewOrderNumber(),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress.ToMap(),
		SubtotalAmount:  subtotal,
		ShippingAmount:  shipping.CostAmount,
		TotalAmount:     subtotal + shipping.CostAmount,
		ShippingMethod:  shipping.Method,
		PaymentStatus:   model.PaymentStatusPending,
		DeliveryStatus:  model.DeliveryStatusPending,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	}
	order.AddStatusHistory(model.HistoryTypePayment, model.PaymentStatusPending, s.now())

	if err := uow.Orders.Create(ctx, order); err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		item := model.OrderItem{
			OrderID:            order.ID,
			ProductID:          line.product.ID,
			ProductVariationID: line.item.ProductVariationID,
			ProductName:        line.product.Name,
			Quantity:           line.item.Quantity,
			UnitPriceAmount:    line.item.UnitPriceAmount,
			TotalAmount:        line.item.LineTotal(),
		}
		if line.variation != nil {
			item.VariationName = line.variation.Name
		}
		items = append(items, item)
	}
	if err := uow.Orders.CreateItems(ctx, items); err != nil {
		return nil, err
	}
	order.Items = items

	for _, line := range lines {
		if err := decrementLineStock(ctx, uow, line); err != nil {
			return nil, err
		}
	}

	// 只删除已下单的条目，快照之后新加入的条目保留
	itemIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		itemIDs = append(itemIDs, line.item.ID)
	}
	if err := uow.Carts.DeleteItems(ctx, cart.ID, itemIDs); err != nil {
		return nil, err
	}
	if err := s.events.OrderCreated(ctx, uow.Outbox, order); err != nil {
		return nil, err
	}
	return order, nil
}

// lockLine 锁定商品/变体行并复核库存
func (s *CheckoutService) lockLine(ctx context.Context, uow *repository.OrderUnitOfWork, store *model.Store, item *model.CartItem) (lockedLine, error) {
	product, err := uow.Products.LockByID(ctx, item.ProductID)
	if err != nil {
		return lockedLine{}, notFoundAs(err, ErrProductNotFound)
	}
	if product.StoreID != store.ID {
		return lockedLine{}, ErrProductNotInStore
	}

	var variation *model.ProductVariation
	if item.ProductVariationID != nil {
		variation, err = uow.Products.LockVariation(ctx, *item.ProductVariationID)
		if err != nil {
			return lockedLine{}, notFoundAs(err, ErrProductNotFound)
		}
		if variation.ProductID != product.ID {
			return lockedLine{}, ErrVariationMismatch
		}
	}

	if err := checkLineStock(item, product, variation); err != nil {
		return lockedLine{}, err
	}
	return lockedLine{item: item, product: product, variation: variation}, nil
}

// decrementLineStock 条件扣减：变体库存为准时扣变体，否则扣商品
func decrementLineStock(ctx context.Context, uow *repository.OrderUnitOfWork, line lockedLine) error {
	var (
		ok  bool
		err error
	)
	if model.UsesVariationStock(line.variation) {
		ok, err = uow.Products.DecrementVariationStock(ctx, line.variation.ID, line.item.Quantity)
	} else {
		ok, err = uow.Products.DecrementStock(ctx, line.product.ID, line.item.Quantity)
	}
	if err != nil {
		return err
	}
	if !ok {
		return insufficientStock(line.product, line.variation)
	}
	return nil
}

func checkLineStock(item *model.CartItem, product *model.Product, variation *model.ProductVariation) error {
	if product == nil {
		return ErrProductNotFound
	}
	if item.Quantity > model.AvailableStock(product, variation) {
		return insufficientStock(product, variation)
	}
	return nil
}

func insufficientStock(product *model.Product, variation *model.ProductVariation) *InsufficientStockError {
	e := &InsufficientStockError{
		ProductName: product.Name,
		Available:   model.AvailableStock(product, variation),
	}
	if model.UsesVariationStock(variation) {
		e.VariationName = variation.Name
	}
	return e
}

func (s *CheckoutService) paymentMethodAvailable(store *model.Store, method string) bool {
	if s.gateways == nil {
		return method != ""
	}
	for _, name := range s.gateways.Available(store) {
		if name == method {
			return true
		}
	}
	return false
}
