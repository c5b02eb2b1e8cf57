package service

import (
	"github.com/shopspring/decimal"

	"storefront_checkout/pkg/utils"
)

// ==================== Correios 服务与常量 ====================

// Correios 服务代码
const (
	CorreiosServiceSedex = "03220" // SEDEX（加急）
	CorreiosServicePac   = "03298" // PAC（经济）
)

// Correios 最小包裹尺寸
const (
	minLengthCm = 16.0
	minWidthCm  = 11.0
	minHeightCm = 2.0
	minWeightKg = 0.3

	// 叠放后的最大高度
	maxParcelHeightCm = 100.0

	fallbackNameSuffix = " (estimativa)"
	defaultDistance    = 3
)

// CarrierService 承运商服务
type CarrierService struct {
	Code string
	Name string
}

// CorreiosServices 报价的服务档位
var CorreiosServices = []CarrierService{
	{Code: CorreiosServiceSedex, Name: "SEDEX"},
	{Code: CorreiosServicePac, Name: "PAC"},
}

// 报价来源
const (
	QuoteSourceAPI      = "api"
	QuoteSourceFallback = "fallback"
	QuoteSourceFixed    = "fixed"
)

// Parcel 包裹（重量千克，长度厘米）
type Parcel struct {
	WeightKg float64
	LengthCm float64
	WidthCm  float64
	HeightCm float64
}

// Normalize 应用承运商最小尺寸
func (p Parcel) Normalize() Parcel {
	return Parcel{
		WeightKg: maxFloat(p.WeightKg, minWeightKg),
		LengthCm: maxFloat(p.LengthCm, minLengthCm),
		WidthCm:  maxFloat(p.WidthCm, minWidthCm),
		HeightCm: maxFloat(p.HeightCm, minHeightCm),
	}
}

// CarrierQuote 承运商报价
type CarrierQuote struct {
	Service      string
	Name         string
	PriceAmount  int64
	DeliveryDays int
	Source       string
}

// ==================== 降级估算 ====================

type fallbackTier struct {
	base          decimal.Decimal
	perRegion     decimal.Decimal
	weightExtra   decimal.Decimal
	baseDays      int
	daysPerRegion int
}

var fallbackTiers = map[string]fallbackTier{
	CorreiosServiceSedex: {
		base:          decimal.RequireFromString("25.00"),
		perRegion:     decimal.RequireFromString("8.50"),
		weightExtra:   decimal.RequireFromString("4.50"),
		baseDays:      1,
		daysPerRegion: 1,
	},
	CorreiosServicePac: {
		base:          decimal.RequireFromString("18.00"),
		perRegion:     decimal.RequireFromString("5.00"),
		weightExtra:   decimal.RequireFromString("3.00"),
		baseDays:      5,
		daysPerRegion: 2,
	},
}

// 邮编首位数字（区域）之间的距离矩阵
var regionDistance = [10][10]int{
	{0, 0, 1, 1, 2, 3, 4, 2, 2, 3},
	{0, 0, 1, 1, 2, 3, 4, 2, 2, 3},
	{1, 1, 0, 1, 2, 3, 4, 2, 3, 3},
	{1, 1, 1, 0, 2, 3, 3, 1, 2, 3},
	{2, 2, 2, 2, 0, 1, 2, 2, 3, 4},
	{3, 3, 3, 3, 1, 0, 1, 3, 4, 5},
	{4, 4, 4, 3, 2, 1, 0, 3, 4, 5},
	{2, 2, 2, 1, 2, 3, 3, 0, 2, 3},
	{2, 2, 3, 2, 3, 4, 4, 2, 0, 1},
	{3, 3, 3, 3, 4, 5, 5, 3, 1, 0},
}

// RegionDistance 两个邮编的区域距离，无法识别时为 3
func RegionDistance(originZip, destZip string) int {
	origin := utils.OnlyDigits(originZip)
	dest := utils.OnlyDigits(destZip)
	if origin == "" || dest == "" {
		return defaultDistance
	}
	return regionDistance[origin[0]-'0'][dest[0]-'0']
}

// EstimateFallback 纯计算的降级报价：区域距离 + 计费重量
func EstimateFallback(originZip, destZip string, parcel Parcel) []CarrierQuote {
	parcel = parcel.Normalize()
	distance := decimal.NewFromInt(int64(RegionDistance(originZip, destZip)))

	cubic := decimal.NewFromFloat(parcel.LengthCm).
		Mul(decimal.NewFromFloat(parcel.WidthCm)).
		Mul(decimal.NewFromFloat(parcel.HeightCm)).
		Div(decimal.NewFromInt(6000))
	billing := decimal.Max(decimal.NewFromFloat(parcel.WeightKg), cubic)
	extraKg := decimal.Max(decimal.Zero, billing.Sub(decimal.NewFromInt(1)))

	quotes := make([]CarrierQuote, 0, len(CorreiosServices))
	for _, svc := range CorreiosServices {
		tier := fallbackTiers[svc.Code]
		price := tier.base.
			Add(distance.Mul(tier.perRegion)).
			Add(extraKg.Mul(tier.weightExtra)).
			Round(2)

		quotes = append(quotes, CarrierQuote{
			Service:      svc.Code,
			Name:         svc.Name + fallbackNameSuffix,
			PriceAmount:  toCents(price),
			DeliveryDays: tier.baseDays + int(distance.IntPart())*tier.daysPerRegion,
			Source:       QuoteSourceFallback,
		})
	}
	return quotes
}

// ==================== 工具函数 ====================

func toCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
