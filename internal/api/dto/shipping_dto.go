package dto

import "time"

// 运费选项类型
const (
	ShippingTypeFixed    = "fixed"
	ShippingTypeCorreios = "correios"
)

// ==================== 运费试算 ====================

// CalculateShippingRequest 运费试算请求
type CalculateShippingRequest struct {
	ZipCode   string `json:"zip_code" binding:"required"`
	SessionID string `json:"session_id"`
}

// CalculateShippingResponse 运费试算响应
type CalculateShippingResponse struct {
	ZipCode string             `json:"zip_code"`
	Options []ShippingOptionVO `json:"options"`
}

// ShippingOptionVO 可选运费（固定规则或承运商报价）
type ShippingOptionVO struct {
	Type         string  `json:"type"`
	ID           *int64  `json:"id,omitempty"`
	Service      string  `json:"service,omitempty"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DeliveryDays *int    `json:"delivery_days"`
	Source       string  `json:"source"`
}

// ==================== 固定运费规则管理 ====================

// ShippingRuleRequest 创建/更新固定运费规则
type ShippingRuleRequest struct {
	Name         string  `json:"name" binding:"required"`
	City         string  `json:"city"`
	State        string  `json:"state" binding:"omitempty,len=2"`
	Price        float64 `json:"price" binding:"gte=0"`
	DeliveryDays *int    `json:"delivery_days" binding:"omitempty,gte=0"`
	Active       *bool   `json:"active"`
}

// ShippingRuleVO 固定运费规则
type ShippingRuleVO struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Price        float64   `json:"price"`
	DeliveryDays *int      `json:"delivery_days"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
