package model

// ==================== ShippingOption 固定运费规则 ====================

// ShippingOption 店铺自定义固定运费
// City/State 均为空：匹配任意地址；仅 State：匹配该州所有城市；均设置：精确匹配
type ShippingOption struct {
	BaseModel

	StoreID      int64  `gorm:"index;not null"`
	Name         string `gorm:"size:255;not null"`
	City         string `gorm:"size:255"`
	State        string `gorm:"size:2"`
	PriceAmount  int64  `gorm:"not null"`
	DeliveryDays *int
	Active       bool `gorm:"not null"`
}

func (*ShippingOption) TableName() string {
	return "shipping_options"
}

// IsUnconstrained 不限地区
func (o *ShippingOption) IsUnconstrained() bool {
	return o.City == "" && o.State == ""
}

// GetPrice 获取价格（元）
func (o *ShippingOption) GetPrice() float64 {
	return CentsToFloat(o.PriceAmount)
}
