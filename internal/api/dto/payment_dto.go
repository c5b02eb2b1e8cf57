package dto

// ==================== 支付 ====================

// PaymentVO 支付信息
type PaymentVO struct {
	Gateway    string  `json:"gateway"`
	PaymentID  string  `json:"payment_id,omitempty"`
	PaymentURL string  `json:"payment_url,omitempty"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

// PaymentMethodsResponse 店铺可用支付方式
type PaymentMethodsResponse struct {
	Methods []string `json:"methods"`
}

// WebhookAckResponse 回调确认
type WebhookAckResponse struct {
	Status string `json:"status"`
}
