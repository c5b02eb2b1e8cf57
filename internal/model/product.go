package model

// 商品尺寸缺省值（重量单位克，长度单位厘米）
const (
	DefaultWeightGrams = 300.0
	DefaultLengthCm    = 20.0
	DefaultWidthCm     = 15.0
	DefaultHeightCm    = 5.0
)

// ==================== Product 商品 ====================

// Product 商品（目录由外部维护，这里只读价格、库存、尺寸）
type Product struct {
	BaseModel

	StoreID    int64  `gorm:"index;not null"`
	CategoryID *int64 `gorm:"index"`
	Name       string `gorm:"size:255;not null"`
	Slug       string `gorm:"size:255;index"`
	SKU        string `gorm:"size:100"`

	// 价格（分）
	PriceAmount int64 `gorm:"not null;default:0"`
	Stock       int   `gorm:"not null;default:0"`
	Active      bool  `gorm:"default:true"`

	// 物理尺寸，可空
	Weight *float64
	Length *float64
	Width  *float64
	Height *float64

	Variations []ProductVariation `gorm:"foreignKey:ProductID"`
}

func (*Product) TableName() string {
	return "products"
}

// HasStock 是否有库存
func (p *Product) HasStock() bool {
	return p.Stock > 0
}

// GetPrice 获取价格（元）
func (p *Product) GetPrice() float64 {
	return CentsToFloat(p.PriceAmount)
}

// ==================== ProductVariation 商品变体 ====================

// ProductVariation 商品变体（如尺码）
type ProductVariation struct {
	BaseModel

	ProductID int64  `gorm:"index;not null"`
	Name      string `gorm:"size:255;not null"`
	SKU       string `gorm:"size:100"`

	// 可选覆盖价格（分）
	PriceAmount *int64
	Stock       int `gorm:"not null;default:0"`

	Weight *float64
	Length *float64
	Width  *float64
	Height *float64
}

func (*ProductVariation) TableName() string {
	return "product_variations"
}

// ==================== 生效值计算 ====================

// UnitPrice 单价快照：变体价优先，否则商品价
func UnitPrice(p *Product, v *ProductVariation) int64 {
	if v != nil && v.PriceAmount != nil {
		return *v.PriceAmount
	}
	return p.PriceAmount
}

// UsesVariationStock 变体存在且库存 > 0 时以变体库存为准
func UsesVariationStock(v *ProductVariation) bool {
	return v != nil && v.Stock > 0
}

// AvailableStock 有效可用库存
func AvailableStock(p *Product, v *ProductVariation) int {
	if UsesVariationStock(v) {
		return v.Stock
	}
	return p.Stock
}

// Dimensions 单件包裹尺寸
type Dimensions struct {
	WeightGrams float64
	LengthCm    float64
	WidthCm     float64
	HeightCm    float64
}

// EffectiveDimensions 变体值 -> 商品值 -> 缺省值
func EffectiveDimensions(p *Product, v *ProductVariation) Dimensions {
	pick := func(fromVariation, fromProduct *float64, fallback float64) float64 {
		if fromVariation != nil && *fromVariation > 0 {
			return *fromVariation
		}
		if fromProduct != nil && *fromProduct > 0 {
			return *fromProduct
		}
		return fallback
	}

	var vw, vl, vwd, vh *float64
	if v != nil {
		vw, vl, vwd, vh = v.Weight, v.Length, v.Width, v.Height
	}

	return Dimensions{
		WeightGrams: pick(vw, p.Weight, DefaultWeightGrams),
		LengthCm:    pick(vl, p.Length, DefaultLengthCm),
		WidthCm:     pick(vwd, p.Width, DefaultWidthCm),
		HeightCm:    pick(vh, p.Height, DefaultHeightCm),
	}
}
