package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront_checkout/internal/api/dto"
	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"
)

// ShippingEstimator 承运商报价（API + 降级估算）
type ShippingEstimator interface {
	Calculate(ctx context.Context, originZip, destZip string, parcel Parcel, creds *model.CarrierCredentials) []CarrierQuote
}

// ResolvedShipping 结账时确认的运费
type ResolvedShipping struct {
	CostAmount int64
	Method     string
}

// ShippingService 运费解析
type ShippingService struct {
	options repository.ShippingOptionRepository
	postal  PostalLookup
	carrier ShippingEstimator
	log     *zap.Logger
}

// NewShippingService 创建运费服务
func NewShippingService(
	options repository.ShippingOptionRepository,
	postal PostalLookup,
	carrier ShippingEstimator,
	log *zap.Logger,
) *ShippingService {
	return &ShippingService{
		options: options,
		postal:  postal,
		carrier: carrier,
		log:     logger.OrNop(log),
	}
}

// ==================== 运费试算 ====================

// CalculateShippingOptions 汇总匹配的固定运费与承运商报价
func (s *ShippingService) CalculateShippingOptions(ctx context.Context, store *model.Store, destZip string, items []model.CartItem) ([]dto.ShippingOptionVO, error) {
	fixed, err := s.matchingFixedOptions(ctx, store, destZip)
	if err != nil {
		return nil, err
	}

	result := make([]dto.ShippingOptionVO, 0, len(fixed)+len(CorreiosServices))
	for i := range fixed {
		opt := fixed[i]
		id := opt.ID
		result = append(result, dto.ShippingOptionVO{
			Type:         dto.ShippingTypeFixed,
			ID:           &id,
			Name:         opt.Name,
			Price:        opt.GetPrice(),
			DeliveryDays: opt.DeliveryDays,
			Source:       QuoteSourceFixed,
		})
	}
	if len(fixed) > 0 {
		metrics.RecordShippingQuote(QuoteSourceFixed, len(fixed))
	}

	for _, quote := range s.carrierQuotes(ctx, store, destZip, items) {
		vo := dto.ShippingOptionVO{
			Type:    dto.ShippingTypeCorreios,
			Service: quote.Service,
			Name:    quote.Name,
			Price:   model.CentsToFloat(quote.PriceAmount),
			Source:  quote.Source,
		}
		if quote.DeliveryDays > 0 {
			days := quote.DeliveryDays
			vo.DeliveryDays = &days
		}
		result = append(result, vo)
	}
	return result, nil
}

// matchingFixedOptions 按收货城市/州过滤固定运费；邮编无法解析时仅返回不限地区的规则
func (s *ShippingService) matchingFixedOptions(ctx context.Context, store *model.Store, destZip string) ([]model.ShippingOption, error) {
	active, err := s.options.ListActiveByStore(ctx, store.ID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	var address *PostalAddress
	if s.postal != nil {
		address, err = s.postal.Lookup(ctx, destZip)
		if err != nil {
			if !errors.Is(err, ErrPostalCodeNotFound) {
				s.log.Warn("[Shipping] 邮编解析失败", zap.String("zip", destZip), zap.Error(err))
			}
			address = nil
		}
	}

	matched := make([]model.ShippingOption, 0, len(active))
	for _, opt := range active {
		if optionMatchesAddress(&opt, address) {
			matched = append(matched, opt)
		}
	}
	return matched, nil
}

func optionMatchesAddress(opt *model.ShippingOption, address *PostalAddress) bool {
	if opt.IsUnconstrained() {
		return true
	}
	if address == nil {
		return false
	}

	stateMatch := opt.State == "" || strings.EqualFold(strings.TrimSpace(opt.State), strings.TrimSpace(address.State))
	if strings.TrimSpace(opt.City) == "" {
		return stateMatch
	}
	cityMatch := strings.EqualFold(strings.TrimSpace(opt.City), strings.TrimSpace(address.City))
	return cityMatch && stateMatch
}

// carrierQuotes 店铺配置了发货邮编时才询价
func (s *ShippingService) carrierQuotes(ctx context.Context, store *model.Store, destZip string, items []model.CartItem) []CarrierQuote {
	if store.ShippingZip == "" || s.carrier == nil {
		return nil
	}
	parcel := CalculateCartDimensions(items)
	return s.carrier.Calculate(ctx, store.ShippingZip, destZip, parcel, store.CarrierCredentials())
}

// ==================== 结账确认 ====================

// ResolveSelectedOption 重新校验客户选择的运费，无法确认时返回错误
func (s *ShippingService) ResolveSelectedOption(
	ctx context.Context,
	store *model.Store,
	destZip string,
	items []model.CartItem,
	optionID *int64,
	serviceCode string,
) (*ResolvedShipping, error) {
	if optionID != nil && *optionID > 0 {
		opt, err := s.options.GetActiveByID(ctx, store.ID, *optionID)
		if err != nil {
			return nil, notFoundAs(err, ErrInvalidShippingOption)
		}
		return &ResolvedShipping{CostAmount: opt.PriceAmount, Method: opt.Name}, nil
	}

	if serviceCode != "" && store.ShippingZip != "" {
		for _, quote := range s.carrierQuotes(ctx, store, destZip, items) {
			if quote.Service == serviceCode {
				return &ResolvedShipping{CostAmount: quote.PriceAmount, Method: quote.Name}, nil
			}
		}
		return nil, ErrCarrierServiceUnavailable
	}

	return nil, ErrNoShippingSelected
}

// ==================== 包裹尺寸 ====================

// CalculateCartDimensions 汇总购物车包裹：重量累加，长宽取最大，高度叠加（上限 100cm）
func CalculateCartDimensions(items []model.CartItem) Parcel {
	var totalWeightGrams, maxLength, maxWidth, totalHeight float64

	for _, item := range items {
		var dims model.Dimensions
		if item.Product != nil {
			dims = model.EffectiveDimensions(item.Product, item.Variation)
		} else {
			dims = model.EffectiveDimensions(&model.Product{}, item.Variation)
		}

		qty := float64(item.Quantity)
		totalWeightGrams += dims.WeightGrams * qty
		maxLength = math.Max(maxLength, dims.LengthCm)
		maxWidth = math.Max(maxWidth, dims.WidthCm)
		totalHeight += dims.HeightCm * qty
	}

	return Parcel{
		WeightKg: totalWeightGrams / 1000,
		LengthCm: maxLength,
		WidthCm:  maxWidth,
		HeightCm: math.Min(totalHeight, maxParcelHeightCm),
	}
}

// ==================== 固定运费规则管理 ====================

// ListRules 店铺全部固定运费规则
func (s *ShippingService) ListRules(ctx context.Context, storeID int64) ([]dto.ShippingRuleVO, error) {
	options, err := s.options.ListByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	list := make([]dto.ShippingRuleVO, 0, len(options))
	for i := range options {
		list = append(list, toShippingRuleVO(&options[i]))
	}
	return list, nil
}

// CreateRule 创建固定运费规则
func (s *ShippingService) CreateRule(ctx context.Context, storeID int64, req *dto.ShippingRuleRequest) (*dto.ShippingRuleVO, error) {
	if err := validateRuleRequest(req); err != nil {
		return nil, err
	}

	opt := &model.ShippingOption{
		StoreID:      storeID,
		Name:         strings.TrimSpace(req.Name),
		City:         strings.TrimSpace(req.City),
		State:        strings.ToUpper(strings.TrimSpace(req.State)),
		PriceAmount:  floatToCents(req.Price),
		DeliveryDays: req.DeliveryDays,
		Active:       true,
	}
	if req.Active != nil {
		opt.Active = *req.Active
	}

	if err := s.options.Create(ctx, opt); err != nil {
		return nil, err
	}
	vo := toShippingRuleVO(opt)
	return &vo, nil
}

// UpdateRule 更新固定运费规则
func (s *ShippingService) UpdateRule(ctx context.Context, storeID, id int64, req *dto.ShippingRuleRequest) (*dto.ShippingRuleVO, error) {
	if err := validateRuleRequest(req); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"name":          strings.TrimSpace(req.Name),
		"city":          strings.TrimSpace(req.City),
		"state":         strings.ToUpper(strings.TrimSpace(req.State)),
		"price_amount":  floatToCents(req.Price),
		"delivery_days": req.DeliveryDays,
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}

	if err := s.options.UpdateFields(ctx, storeID, id, fields); err != nil {
		return nil, notFoundAs(err, ErrShippingOptionNotFound)
	}

	opt, err := s.options.GetByID(ctx, storeID, id)
	if err != nil {
		return nil, notFoundAs(err, ErrShippingOptionNotFound)
	}
	vo := toShippingRuleVO(opt)
	return &vo, nil
}

// DeleteRule 删除固定运费规则
func (s *ShippingService) DeleteRule(ctx context.Context, storeID, id int64) error {
	return notFoundAs(s.options.Delete(ctx, storeID, id), ErrShippingOptionNotFound)
}

func validateRuleRequest(req *dto.ShippingRuleRequest) error {
	if strings.TrimSpace(req.Name) == "" || req.Price < 0 {
		return ErrInvalidShippingOptionData
	}
	return nil
}

func toShippingRuleVO(opt *model.ShippingOption) dto.ShippingRuleVO {
	return dto.ShippingRuleVO{
		ID:           opt.ID,
		Name:         opt.Name,
		City:         opt.City,
		State:        opt.State,
		Price:        opt.GetPrice(),
		DeliveryDays: opt.DeliveryDays,
		Active:       opt.Active,
		CreatedAt:    opt.CreatedAt,
	}
}

// floatToCents 元 → 分（四舍五入）
func floatToCents(amount float64) int64 {
	return toCents(decimal.NewFromFloat(amount))
}
