package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"storefront_checkout/internal/model"
	"storefront_checkout/pkg/utils"
)

// WhatsAppService 生成 wa.me 订单链接
type WhatsAppService struct {
	baseURL string
}

// NewWhatsAppService 创建服务
func NewWhatsAppService() *WhatsAppService {
	return &WhatsAppService{baseURL: "https://wa.me/"}
}

// OrderLink 店铺未配置 WhatsApp 时返回空串
func (s *WhatsAppService) OrderLink(store *model.Store, order *model.Order) string {
	phone := utils.OnlyDigits(store.WhatsApp)
	if phone == "" {
		return ""
	}
	return s.baseURL + phone + "?text=" + url.QueryEscape(s.BuildOrderMessage(store, order))
}

// BuildOrderMessage 订单通知文本（面向巴西店主，葡语）
func (s *WhatsAppService) BuildOrderMessage(store *model.Store, order *model.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🛒 *Novo Pedido - %s*\n\n", store.Name)
	fmt.Fprintf(&b, "📋 *Pedido:* %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "👤 *Cliente:* %s\n", order.CustomerName)
	if order.CustomerEmail != "" {
		fmt.Fprintf(&b, "📧 *Email:* %s\n", order.CustomerEmail)
	}
	if order.CustomerPhone != "" {
		fmt.Fprintf(&b, "📱 *Telefone:* %s\n", order.CustomerPhone)
	}

	b.WriteString("\n📦 *Produtos:*\n")
	for _, item := range order.Items {
		name := item.ProductName
		if item.VariationName != "" {
			name += " (" + item.VariationName + ")"
		}
		fmt.Fprintf(&b, "  • %s x%d - %s\n", name, item.Quantity, FormatBRL(item.TotalAmount))
	}

	fmt.Fprintf(&b, "\n💰 *Subtotal:* %s\n", FormatBRL(order.SubtotalAmount))
	if order.ShippingAmount > 0 {
		fmt.Fprintf(&b, "🚚 *Frete:* %s", FormatBRL(order.ShippingAmount))
		if order.ShippingMethod != "" {
			fmt.Fprintf(&b, " (%s)", order.ShippingMethod)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "💵 *Total:* %s\n", FormatBRL(order.TotalAmount))
	fmt.Fprintf(&b, "\n💳 *Forma de pagamento:* %s", order.PaymentMethod)

	if order.Notes != "" {
		fmt.Fprintf(&b, "\n\n📝 *Observações:* %s", order.Notes)
	}
	return b.String()
}

// FormatBRL 分 → "R$ 1.234,56"
func FormatBRL(cents int64) string {
	fixed := decimal.New(cents, -2).StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return "R$ " + sign + grouped.String() + "," + frac
}
