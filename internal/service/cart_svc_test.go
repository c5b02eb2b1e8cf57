package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
)

func TestCartService_GetOrCreateCart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	t.Run("缺少身份", func(t *testing.T) {
		_, err := f.carts.GetOrCreateCart(ctx, f.store, repository.CartIdentity{})
		assert.ErrorIs(t, err, ErrMissingCartIdentity)
	})

	t.Run("同一会话返回同一购物车", func(t *testing.T) {
		first, err := f.carts.GetOrCreateCart(ctx, f.store, sessionIdentity("sess-1"))
		require.NoError(t, err)
		second, err := f.carts.GetOrCreateCart(ctx, f.store, sessionIdentity("sess-1"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("登录用户与会话互不相同", func(t *testing.T) {
		byUser, err := f.carts.GetOrCreateCart(ctx, f.store, repository.CartIdentity{UserID: 7, SessionID: "sess-1"})
		require.NoError(t, err)
		bySession, err := f.carts.GetOrCreateCart(ctx, f.store, sessionIdentity("sess-1"))
		require.NoError(t, err)
		assert.NotEqual(t, byUser.ID, bySession.ID)
		require.NotNil(t, byUser.UserID)
		assert.Equal(t, int64(7), *byUser.UserID)
	})

	t.Run("不同店铺同一会话互不相同", func(t *testing.T) {
		other := seedStore(t, f.db, "other")
		a, err := f.carts.GetOrCreateCart(ctx, f.store, sessionIdentity("shared"))
		require.NoError(t, err)
		b, err := f.carts.GetOrCreateCart(ctx, other, sessionIdentity("shared"))
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestCartService_AddItem(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	shirt := seedProduct(t, f.db, f.store.ID, "camiseta", 4990, 10)
	bigPrice := int64(5990)
	sizeG := seedVariation(t, f.db, shirt.ID, "G", &bigPrice, 3)
	sizeM := seedVariation(t, f.db, shirt.ID, "M", nil, 0)

	t.Run("同款商品合并数量", func(t *testing.T) {
		cart := f.cartWith(t, "merge")
		_, err := f.carts.AddItem(ctx, f.store, cart, shirt.ID, nil, 1)
		require.NoError(t, err)
		item, err := f.carts.AddItem(ctx, f.store, cart, shirt.ID, nil, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, item.Quantity)

		summary, err := f.carts.GetCartSummary(ctx, f.store, cart)
		require.NoError(t, err)
		require.Len(t, summary.Items, 1)
		assert.Equal(t, 3, summary.ItemsCount)
		assert.InDelta(t, 149.70, summary.Subtotal, 0.001)
	})

	t.Run("不同变体分开计行，变体价优先", func(t *testing.T) {
		cart := f.cartWith(t, "variations")
		_, err := f.carts.AddItem(ctx, f.store, cart, shirt.ID, &sizeG.ID, 1)
		require.NoError(t, err)
		item, err := f.carts.AddItem(ctx, f.store, cart, shirt.ID, &sizeM.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(4990), item.UnitPriceAmount)

		summary, err := f.carts.GetCartSummary(ctx, f.store, cart)
		require.NoError(t, err)
		require.Len(t, summary.Items, 2)
		assert.InDelta(t, 59.90, summary.Items[0].UnitPrice, 0.001)
		require.NotNil(t, summary.Items[0].Variation)
		assert.Equal(t, "G", summary.Items[0].Variation.Name)
		assert.InDelta(t, 109.80, summary.Subtotal, 0.001)
	})

	t.Run("单价为加入时的快照", func(t *testing.T) {
		cart := f.cartWith(t, "snapshot")
		_, err := f.carts.AddItem(ctx, f.store, cart, shirt.ID, nil, 1)
		require.NoError(t, err)
		require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", shirt.ID).Update("price_amount", 9990).Error)

		summary, err := f.carts.GetCartSummary(ctx, f.store, cart)
		require.NoError(t, err)
		assert.InDelta(t, 49.90, summary.Subtotal, 0.001)
	})

	t.Run("数量非法", func(t *testing.T) {
		cart := f.cartWith(t, "invalid-qty")
		_, err := f.carts.AddItem(ctx, f.store, cart, shirt.ID, nil, 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("其他店铺的商品", func(t *testing.T) {
		other := seedStore(t, f.db, "foreign")
		foreign := seedProduct(t, f.db, other.ID, "alheio", 1000, 5)
		cart := f.cartWith(t, "foreign")
		_, err := f.carts.AddItem(ctx, f.store, cart, foreign.ID, nil, 1)
		assert.ErrorIs(t, err, ErrProductNotInStore)
	})

	t.Run("下架或无库存", func(t *testing.T) {
		inactive := seedProduct(t, f.db, f.store.ID, "inativo", 1000, 5)
		require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", inactive.ID).Update("active", false).Error)
		empty := seedProduct(t, f.db, f.store.ID, "esgotado", 1000, 0)

		cart := f.cartWith(t, "unavailable")
		_, err := f.carts.AddItem(ctx, f.store, cart, inactive.ID, nil, 1)
		assert.ErrorIs(t, err, ErrProductUnavailable)
		_, err = f.carts.AddItem(ctx, f.store, cart, empty.ID, nil, 1)
		assert.ErrorIs(t, err, ErrProductUnavailable)
	})

	t.Run("商品不存在", func(t *testing.T) {
		cart := f.cartWith(t, "missing")
		_, err := f.carts.AddItem(ctx, f.store, cart, 99999, nil, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)

		missingVariation := int64(99999)
		_, err = f.carts.AddItem(ctx, f.store, cart, shirt.ID, &missingVariation, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	product := seedProduct(t, f.db, f.store.ID, "caneca", 2500, 10)

	cart := f.cartWith(t, "edit", cartLine{productID: product.ID, qty: 1})
	current, err := f.carts.GetOrCreateCart(ctx, f.store, sessionIdentity("edit"))
	require.NoError(t, err)
	require.Len(t, current.Items, 1)
	itemID := current.Items[0].ID

	require.NoError(t, f.carts.UpdateItemQuantity(ctx, cart, itemID, 4))
	summary, err := f.carts.GetCartSummary(ctx, f.store, cart)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ItemsCount)
	assert.InDelta(t, 100.0, summary.Subtotal, 0.001)

	assert.ErrorIs(t, f.carts.UpdateItemQuantity(ctx, cart, itemID, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, f.carts.UpdateItemQuantity(ctx, cart, 99999, 2), ErrCartItemNotFound)

	// 其他购物车的商品行不可操作
	otherCart := f.cartWith(t, "intruder")
	assert.ErrorIs(t, f.carts.RemoveItem(ctx, otherCart, itemID), ErrCartItemNotFound)

	require.NoError(t, f.carts.RemoveItem(ctx, cart, itemID))
	assert.ErrorIs(t, f.carts.RemoveItem(ctx, cart, itemID), ErrCartItemNotFound)

	summary, err = f.carts.GetCartSummary(ctx, f.store, cart)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
	assert.Equal(t, 0.0, summary.Subtotal)
}
