package dto

// ==================== 结账 ====================

// AddressDTO 收货地址
type AddressDTO struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

// ToMap 转为订单 JSON 字段
func (a *AddressDTO) ToMap() map[string]interface{} {
	if a == nil {
		return nil
	}
	return map[string]interface{}{
		"street":       a.Street,
		"number":       a.Number,
		"complement":   a.Complement,
		"neighborhood": a.Neighborhood,
		"city":         a.City,
		"state":        a.State,
		"zip":          a.Zip,
	}
}

// CheckoutRequest 结账请求
type CheckoutRequest struct {
	SessionID        string      `json:"session_id"`
	CustomerName     string      `json:"customer_name" binding:"required"`
	CustomerEmail    string      `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone    string      `json:"customer_phone"`
	ShippingAddress  *AddressDTO `json:"shipping_address"`
	PaymentMethod    string      `json:"payment_method" binding:"required"`
	ShippingOptionID *int64      `json:"shipping_option_id"`
	ShippingService  string      `json:"shipping_service"`
	Notes            string      `json:"notes"`
}

// HasShippingSelection 是否选择了运费
func (r *CheckoutRequest) HasShippingSelection() bool {
	return r.ShippingOptionID != nil || r.ShippingService != ""
}

// DestinationZip 收货邮编
func (r *CheckoutRequest) DestinationZip() string {
	if r.ShippingAddress == nil {
		return ""
	}
	return r.ShippingAddress.Zip
}

// CheckoutResponse 结账响应
type CheckoutResponse struct {
	OrderID        int64      `json:"order_id"`
	OrderNumber    string     `json:"order_number"`
	Subtotal       float64    `json:"subtotal"`
	ShippingCost   float64    `json:"shipping_cost"`
	ShippingMethod string     `json:"shipping_method,omitempty"`
	Total          float64    `json:"total"`
	PaymentStatus  string     `json:"payment_status"`
	PaymentMethod  string     `json:"payment_method"`
	Payment        *PaymentVO `json:"payment,omitempty"`
	WhatsAppURL    string     `json:"whatsapp_url,omitempty"`
}
