package service

import (
	"context"

	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/logger"
)

// CartService 购物车
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	log      *zap.Logger
}

// NewCartService 创建购物车服务
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, log *zap.Logger) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		log:      logger.OrNop(log),
	}
}

// GetOrCreateCart 按身份查找或创建购物车（含商品行）
func (s *CartService) GetOrCreateCart(ctx context.Context, store *model.Store, identity repository.CartIdentity) (*model.Cart, error) {
	if identity.IsZero() {
		return nil, ErrMissingCartIdentity
	}

	cart, err := s.carts.FindOrCreate(ctx, store.ID, identity)
	if err != nil {
		return nil, err
	}
	return s.carts.GetWithItems(ctx, store.ID, cart.ID)
}

// AddItem 加入购物车；同一商品+变体合并数量，单价在加入时快照
func (s *CartService) AddItem(ctx context.Context, store *model.Store, cart *model.Cart, productID int64, variationID *int64, qty int) (*model.CartItem, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	if cart.StoreID != store.ID {
		return nil, ErrProductNotInStore
	}

	product, variation, err := s.loadPurchasable(ctx, store, productID, variationID)
	if err != nil {
		return nil, err
	}

	current, err := s.carts.GetWithItems(ctx, store.ID, cart.ID)
	if err != nil {
		return nil, err
	}
	for i := range current.Items {
		existing := &current.Items[i]
		if !existing.SameLine(product.ID, variationID) {
			continue
		}
		if err := s.carts.IncrementItemQuantity(ctx, cart.ID, existing.ID, qty); err != nil {
			return nil, err
		}
		existing.Quantity += qty
		return existing, nil
	}

	item := &model.CartItem{
		CartID:             cart.ID,
		ProductID:          product.ID,
		ProductVariationID: variationID,
		Quantity:           qty,
		UnitPriceAmount:    model.UnitPrice(product, variation),
		Product:            product,
		Variation:          variation,
	}
	if err := s.carts.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	s.log.Debug("[Cart] 商品已加入",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("product_id", product.ID),
		zap.Int("quantity", qty),
	)
	return item, nil
}

// loadPurchasable 校验商品归属店铺、上架且有库存，变体必须属于该商品
func (s *CartService) loadPurchasable(ctx context.Context, store *model.Store, productID int64, variationID *int64) (*model.Product, *model.ProductVariation, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, nil, notFoundAs(err, ErrProductNotFound)
	}
	if product.StoreID != store.ID {
		return nil, nil, ErrProductNotInStore
	}

	var variation *model.ProductVariation
	if variationID != nil {
		variation, err = s.products.GetVariation(ctx, product.ID, *variationID)
		if err != nil {
			return nil, nil, notFoundAs(err, ErrProductNotFound)
		}
	}

	if !product.Active || model.AvailableStock(product, variation) <= 0 {
		return nil, nil, ErrProductUnavailable
	}
	return product, variation, nil
}

// UpdateItemQuantity 修改数量（>= 1，此处不设上限）
func (s *CartService) UpdateItemQuantity(ctx context.Context, cart *model.Cart, itemID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	return notFoundAs(s.carts.UpdateItemQuantity(ctx, cart.ID, itemID, qty), ErrCartItemNotFound)
}

// RemoveItem 删除商品行
func (s *CartService) RemoveItem(ctx context.Context, cart *model.Cart, itemID int64) error {
	return notFoundAs(s.carts.DeleteItem(ctx, cart.ID, itemID), ErrCartItemNotFound)
}

// ClearCart 清空购物车
func (s *CartService) ClearCart(ctx context.Context, cart *model.Cart) error {
	return s.carts.ClearItems(ctx, cart.ID)
}

// GetCartSummary 重新读取并实时计算小计
func (s *CartService) GetCartSummary(ctx context.Context, store *model.Store, cart *model.Cart) (*dto.CartSummaryResponse, error) {
	fresh, err := s.carts.GetWithItems(ctx, store.ID, cart.ID)
	if err != nil {
		return nil, err
	}
	return BuildCartSummary(fresh), nil
}

// BuildCartSummary 购物车投影
func BuildCartSummary(cart *model.Cart) *dto.CartSummaryResponse {
	items := make([]dto.CartItemVO, 0, len(cart.Items))
	for _, item := range cart.Items {
		vo := dto.CartItemVO{
			ID:        item.ID,
			Product:   dto.CartProductVO{ID: item.ProductID},
			Quantity:  item.Quantity,
			UnitPrice: model.CentsToFloat(item.UnitPriceAmount),
			Total:     model.CentsToFloat(item.LineTotal()),
		}
		if item.Product != nil {
			vo.Product.Name = item.Product.Name
			vo.Product.Slug = item.Product.Slug
		}
		if item.Variation != nil {
			vo.Variation = &dto.CartVariationVO{ID: item.Variation.ID, Name: item.Variation.Name}
		}
		items = append(items, vo)
	}

	return &dto.CartSummaryResponse{
		CartID:     cart.ID,
		ItemsCount: cart.ItemsCount(),
		Subtotal:   model.CentsToFloat(cart.Subtotal()),
		Items:      items,
	}
}
