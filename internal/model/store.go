package model

import (
	"strings"

	"gorm.io/datatypes"
)

// 店铺状态
const (
	StoreStatusActive   = "active"   // 正常营业
	StoreStatusInactive = "inactive" // 已停用
)

// ==================== Store 店铺（租户根） ====================

// Store 店铺
type Store struct {
	BaseModel

	Name     string `gorm:"size:255;not null"`
	Slug     string `gorm:"size:255;uniqueIndex;not null"`
	Email    string `gorm:"size:255"`
	WhatsApp string `gorm:"size:32"`
	Status   string `gorm:"size:20;index;default:active"`

	// 运费计算发货地邮编
	ShippingZip string `gorm:"size:9"`

	// Correios 合同凭证（可选）
	CorreiosUser           string `gorm:"size:100"`
	CorreiosPassword       string `gorm:"type:text"`
	CorreiosCartaoPostagem string `gorm:"size:32"`

	// 支付网关配置，形如 {"stripe": {"enabled": true, "secret_key": "..."}}
	PaymentConfig datatypes.JSONMap `gorm:"type:jsonb"`

	Domains []StoreDomain `gorm:"foreignKey:StoreID"`
}

func (*Store) TableName() string {
	return "stores"
}

// IsActive 是否营业中
func (s *Store) IsActive() bool {
	return s.Status == StoreStatusActive
}

// CarrierCredentials 承运商凭证，未配置齐全时返回 nil
func (s *Store) CarrierCredentials() *CarrierCredentials {
	if s.CorreiosUser == "" || s.CorreiosPassword == "" || s.CorreiosCartaoPostagem == "" {
		return nil
	}
	return &CarrierCredentials{
		User:           s.CorreiosUser,
		Password:       s.CorreiosPassword,
		CartaoPostagem: s.CorreiosCartaoPostagem,
	}
}

// GatewayConfig 获取指定网关的配置
func (s *Store) GatewayConfig(gateway string) map[string]interface{} {
	if s.PaymentConfig == nil {
		return nil
	}
	if cfg, ok := s.PaymentConfig[gateway].(map[string]interface{}); ok {
		return cfg
	}
	return nil
}

// GatewayEnabled 网关是否启用
func (s *Store) GatewayEnabled(gateway string) bool {
	cfg := s.GatewayConfig(gateway)
	if cfg == nil {
		return false
	}
	enabled, _ := cfg["enabled"].(bool)
	return enabled
}

// GatewaySecret 读取网关配置中的字符串字段
func (s *Store) GatewaySecret(gateway, key string) string {
	cfg := s.GatewayConfig(gateway)
	if cfg == nil {
		return ""
	}
	v, _ := cfg[key].(string)
	return strings.TrimSpace(v)
}

// CarrierCredentials Correios 凭证
type CarrierCredentials struct {
	User           string
	Password       string
	CartaoPostagem string
}

// ==================== StoreDomain 店铺域名 ====================

// StoreDomain 店铺绑定域名
type StoreDomain struct {
	BaseModel
	StoreID   int64  `gorm:"index;not null"`
	Domain    string `gorm:"size:255;uniqueIndex;not null"`
	IsPrimary bool   `gorm:"default:false"`
}

func (*StoreDomain) TableName() string {
	return "store_domains"
}
