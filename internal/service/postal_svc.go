package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/utils"
)

// ErrPostalCodeNotFound 邮编无效或不存在
var ErrPostalCodeNotFound = errors.New("邮编不存在")

// PostalAddress 邮编解析结果
type PostalAddress struct {
	ZipCode  string `json:"zip_code"`
	Street   string `json:"street"`
	District string `json:"district"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// PostalLookup 邮编 → 城市/州
type PostalLookup interface {
	Lookup(ctx context.Context, zip string) (*PostalAddress, error)
}

// ViaCEPClient ViaCEP 邮编查询
type ViaCEPClient struct {
	http *resty.Client
	log  *zap.Logger
}

// NewViaCEPClient 创建客户端
func NewViaCEPClient(baseURL string, timeout time.Duration, log *zap.Logger) *ViaCEPClient {
	if baseURL == "" {
		baseURL = "https://viacep.com.br"
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &ViaCEPClient{
		http: utils.NewHTTPClient(baseURL, timeout),
		log:  logger.OrNop(log),
	}
}

type viaCEPResponse struct {
	Cep        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       any    `json:"erro"`
}

// Lookup 查询邮编；非 8 位数字或接口返回 erro 时为 ErrPostalCodeNotFound
func (c *ViaCEPClient) Lookup(ctx context.Context, zip string) (*PostalAddress, error) {
	zip = utils.OnlyDigits(zip)
	if len(zip) != 8 {
		return nil, ErrPostalCodeNotFound
	}

	var result viaCEPResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/ws/%s/json/", zip))
	if err != nil {
		c.log.Warn("[ViaCEP] 请求失败", zap.String("zip", zip), zap.Error(err))
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ViaCEP 返回 HTTP %d", resp.StatusCode())
	}
	if result.Erro != nil && result.Erro != false {
		return nil, ErrPostalCodeNotFound
	}

	return &PostalAddress{
		ZipCode:  zip,
		Street:   result.Logradouro,
		District: result.Bairro,
		City:     result.Localidade,
		State:    result.UF,
	}, nil
}
