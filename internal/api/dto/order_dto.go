package dto

import "time"

// ==================== 订单列表查询 ====================

// ListOrdersRequest 订单列表请求
type ListOrdersRequest struct {
	PaymentStatus  string `form:"payment_status"`  // pending, awaiting_payment, paid, cancelled, refunded
	DeliveryStatus string `form:"delivery_status"` // pending, processing, shipped, delivered, cancelled
	Keyword        string `form:"keyword"`         // 搜索：订单号、客户名、邮箱
	Page           int    `form:"page,default=1"`
	PageSize       int    `form:"page_size,default=20"`
}

// ListOrdersResponse 订单列表响应
type ListOrdersResponse struct {
	Total int64           `json:"total"`
	List  []OrderListItem `json:"list"`
}

// OrderListItem 订单列表项
type OrderListItem struct {
	ID             int64     `json:"id"`
	OrderNumber    string    `json:"order_number"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email,omitempty"`
	ItemCount      int       `json:"item_count"`
	Total          float64   `json:"total"`
	PaymentStatus  string    `json:"payment_status"`
	DeliveryStatus string    `json:"delivery_status"`
	PaymentMethod  string    `json:"payment_method"`
	CreatedAt      time.Time `json:"created_at"`
}

// ==================== 订单详情 ====================

// OrderDetailResponse 订单详情响应
type OrderDetailResponse struct {
	Order         *OrderVO          `json:"order"`
	Items         []OrderItemVO     `json:"items"`
	StatusHistory []StatusHistoryVO `json:"status_history"`
	Payment       *PaymentVO        `json:"payment,omitempty"`
}

// OrderVO 订单视图对象
type OrderVO struct {
	ID              int64                  `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	CustomerName    string                 `json:"customer_name"`
	CustomerEmail   string                 `json:"customer_email,omitempty"`
	CustomerPhone   string                 `json:"customer_phone,omitempty"`
	ShippingAddress map[string]interface{} `json:"shipping_address"`
	Subtotal        float64                `json:"subtotal"`
	ShippingCost    float64                `json:"shipping_cost"`
	ShippingMethod  string                 `json:"shipping_method,omitempty"`
	Total           float64                `json:"total"`
	PaymentStatus   string                 `json:"payment_status"`
	DeliveryStatus  string                 `json:"delivery_status"`
	PaymentMethod   string                 `json:"payment_method"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// OrderItemVO 订单项视图对象
type OrderItemVO struct {
	ID            int64   `json:"id"`
	ProductID     int64   `json:"product_id"`
	VariationID   *int64  `json:"variation_id,omitempty"`
	ProductName   string  `json:"product_name"`
	VariationName string  `json:"variation_name,omitempty"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Total         float64 `json:"total"`
}

// StatusHistoryVO 状态历史
type StatusHistoryVO struct {
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ==================== 状态变更 ====================

// UpdateStatusRequest 修改支付/配送状态
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ==================== 公开查询 ====================

// PublicOrderStatusResponse 订单号公开查询
type PublicOrderStatusResponse struct {
	OrderNumber    string              `json:"order_number"`
	PaymentStatus  string              `json:"payment_status"`
	DeliveryStatus string              `json:"delivery_status"`
	Total          float64             `json:"total"`
	Items          []PublicOrderItemVO `json:"items"`
	StatusHistory  []StatusHistoryVO   `json:"status_history"`
	CreatedAt      time.Time           `json:"created_at"`
}

type PublicOrderItemVO struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
}
