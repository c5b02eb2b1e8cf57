package model

// ==================== Cart 购物车 ====================

// Cart 购物车，店铺内由 session_id 或 user_id 之一唯一标识
type Cart struct {
	BaseModel

	StoreID   int64   `gorm:"not null;uniqueIndex:uk_cart_session;uniqueIndex:uk_cart_user"`
	SessionID *string `gorm:"size:128;uniqueIndex:uk_cart_session"`
	UserID    *int64  `gorm:"uniqueIndex:uk_cart_user"`

	Items []CartItem `gorm:"foreignKey:CartID"`
}

func (*Cart) TableName() string {
	return "carts"
}

// Subtotal 每次重新计算小计（分）
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// ItemsCount 商品件数
func (c *Cart) ItemsCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// ==================== CartItem 购物车行 ====================

// CartItem 购物车行，单价为加入时的快照
type CartItem struct {
	BaseModel

	CartID             int64  `gorm:"index;not null"`
	ProductID          int64  `gorm:"index;not null"`
	ProductVariationID *int64 `gorm:"index"`
	Quantity           int    `gorm:"not null;default:1"`
	UnitPriceAmount    int64  `gorm:"not null"`

	Product   *Product          `gorm:"foreignKey:ProductID"`
	Variation *ProductVariation `gorm:"foreignKey:ProductVariationID"`
}

func (*CartItem) TableName() string {
	return "cart_items"
}

// LineTotal 行小计（分）
func (i *CartItem) LineTotal() int64 {
	return i.UnitPriceAmount * int64(i.Quantity)
}

// SameLine 是否为同一商品+变体
func (i *CartItem) SameLine(productID int64, variationID *int64) bool {
	if i.ProductID != productID {
		return false
	}
	if i.ProductVariationID == nil || variationID == nil {
		return i.ProductVariationID == nil && variationID == nil
	}
	return *i.ProductVariationID == *variationID
}
