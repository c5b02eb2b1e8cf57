package dto

// ==================== 购物车 ====================

// AddCartItemRequest 加入购物车
type AddCartItemRequest struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	VariationID *int64 `json:"variation_id"`
	Quantity    int    `json:"quantity"`
	SessionID   string `json:"session_id"`
}

// UpdateCartItemRequest 修改数量
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartSummaryResponse 购物车汇总，小计每次实时计算
type CartSummaryResponse struct {
	CartID     int64        `json:"cart_id"`
	ItemsCount int          `json:"items_count"`
	Subtotal   float64      `json:"subtotal"`
	Items      []CartItemVO `json:"items"`
}

// CartItemVO 购物车行
type CartItemVO struct {
	ID        int64            `json:"id"`
	Product   CartProductVO    `json:"product"`
	Variation *CartVariationVO `json:"variation"`
	Quantity  int              `json:"quantity"`
	UnitPrice float64          `json:"unit_price"`
	Total     float64          `json:"total"`
}

type CartProductVO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type CartVariationVO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
