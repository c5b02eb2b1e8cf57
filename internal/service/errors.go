package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ==================== 领域错误 ====================

// 校验类错误（422）
var (
	ErrEmptyCart                 = errors.New("购物车为空")
	ErrInvalidShippingOption     = errors.New("运费选项无效")
	ErrCarrierServiceUnavailable = errors.New("Correios 运输服务不可用")
	ErrNoShippingSelected        = errors.New("未选择运费选项")
	ErrProductUnavailable        = errors.New("商品不可售")
	ErrInvalidQuantity           = errors.New("数量必须大于等于 1")
	ErrInvalidStatus             = errors.New("无效的状态值")
	ErrInvalidTransition         = errors.New("当前状态不允许该变更")
	ErrOrderNotCancellable       = errors.New("订单当前状态不可取消")
	ErrPaymentMethodUnavailable  = errors.New("该店铺未启用此支付方式")
	ErrMissingCartIdentity       = errors.New("缺少购物车会话标识")
	ErrInvalidShippingOptionData = errors.New("运费规则参数错误")
	ErrVariationMismatch         = errors.New("商品变体不属于该商品")
)

// 资源不存在类错误（404）
var (
	ErrOrderNotFound          = errors.New("订单不存在")
	ErrCartItemNotFound       = errors.New("购物车商品不存在")
	ErrProductNotFound        = errors.New("商品不存在")
	ErrShippingOptionNotFound = errors.New("运费规则不存在")
	ErrPaymentNotFound        = errors.New("支付记录不存在")
)

// 越权访问（403）
var ErrProductNotInStore = errors.New("商品不属于当前店铺")

// InsufficientStockError 库存不足
type InsufficientStockError struct {
	ProductName   string
	VariationName string
	Available     int
}

func (e *InsufficientStockError) Error() string {
	if e.VariationName != "" {
		return fmt.Sprintf("库存不足: %s (%s)，可用数量: %d", e.ProductName, e.VariationName, e.Available)
	}
	return fmt.Sprintf("库存不足: %s，可用数量: %d", e.ProductName, e.Available)
}

// ==================== 错误分类 ====================

// IsValidationError 是否为业务校验错误
func IsValidationError(err error) bool {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return true
	}
	for _, target := range []error{
		ErrEmptyCart, ErrInvalidShippingOption, ErrCarrierServiceUnavailable, ErrNoShippingSelected,
		ErrProductUnavailable, ErrInvalidQuantity, ErrInvalidStatus, ErrInvalidTransition,
		ErrOrderNotCancellable, ErrPaymentMethodUnavailable, ErrMissingCartIdentity,
		ErrInvalidShippingOptionData, ErrVariationMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound 是否为资源不存在
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrOrderNotFound, ErrCartItemNotFound, ErrProductNotFound,
		ErrShippingOptionNotFound, ErrPaymentNotFound, gorm.ErrRecordNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsForbidden 是否越权
func IsForbidden(err error) bool {
	return errors.Is(err, ErrProductNotInStore)
}

// notFoundAs 将 gorm 未找到转换为领域错误
func notFoundAs(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}
