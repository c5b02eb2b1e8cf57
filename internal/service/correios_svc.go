package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront_checkout/internal/model"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"
	"storefront_checkout/pkg/utils"
)

const (
	correiosTokenPath    = "/token/v1/autentica/cartaopostagem"
	correiosPricePath    = "/preco/v1/nacional/%s"
	correiosDeadlinePath = "/prazo/v1/nacional/%s"
	correiosObjectType   = "2" // 2 = 包裹
	correiosTokenPrefix  = "correios:token:"
)

var errCorreiosAuth = errors.New("correios 认证失败")

// CorreiosConfig Correios 客户端配置
type CorreiosConfig struct {
	BaseURL  string
	Timeout  time.Duration
	TokenTTL time.Duration
}

// CorreiosClient Correios 运费 API 客户端
// 令牌按邮政卡号缓存，同一卡号同一时刻只有一个刷新请求
type CorreiosClient struct {
	http     *resty.Client
	tokens   *utils.TTLCache
	tokenTTL time.Duration
	timeout  time.Duration
	group    singleflight.Group
	log      *zap.Logger
}

// NewCorreiosClient 创建客户端
func NewCorreiosClient(cfg CorreiosConfig, tokens *utils.TTLCache, log *zap.Logger) *CorreiosClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 50 * time.Minute
	}
	if tokens == nil {
		tokens = utils.NewTTLCache()
	}
	return &CorreiosClient{
		http:     utils.NewHTTPClient(cfg.BaseURL, cfg.Timeout),
		tokens:   tokens,
		tokenTTL: cfg.TokenTTL,
		timeout:  cfg.Timeout,
		log:      logger.OrNop(log),
	}
}

// Calculate 官方 API 优先，无可用报价（或未配置凭证）时使用降级估算
func (c *CorreiosClient) Calculate(ctx context.Context, originZip, destZip string, parcel Parcel, creds *model.CarrierCredentials) []CarrierQuote {
	parcel = parcel.Normalize()
	originZip = utils.OnlyDigits(originZip)
	destZip = utils.OnlyDigits(destZip)

	if creds != nil {
		if quotes := c.QuoteAPI(ctx, creds, originZip, destZip, parcel); len(quotes) > 0 {
			metrics.RecordShippingQuote(QuoteSourceAPI, len(quotes))
			return quotes
		}
		c.log.Info("[Correios] API 无可用报价，使用估算", zap.String("dest", destZip))
	}

	quotes := EstimateFallback(originZip, destZip, parcel)
	metrics.RecordShippingQuote(QuoteSourceFallback, len(quotes))
	return quotes
}

// QuoteAPI 调用官方接口，失败的服务档位被忽略，永不返回错误
func (c *CorreiosClient) QuoteAPI(ctx context.Context, creds *model.CarrierCredentials, originZip, destZip string, parcel Parcel) []CarrierQuote {
	token, err := c.token(ctx, creds)
	if err != nil {
		c.log.Warn("[Correios] 获取令牌失败", zap.Error(err))
		return nil
	}

	results := make([]*CarrierQuote, len(CorreiosServices))
	p := pool.New().WithMaxGoroutines(len(CorreiosServices))
	for i, svc := range CorreiosServices {
		p.Go(func() {
			quote, err := c.quoteService(ctx, token, svc, originZip, destZip, parcel)
			if err != nil {
				if errors.Is(err, errCorreiosAuth) {
					c.tokens.Delete(correiosTokenPrefix + creds.CartaoPostagem)
				}
				c.log.Warn("[Correios] 服务报价失败",
					zap.String("service", svc.Code),
					zap.Error(err),
				)
				return
			}
			results[i] = quote
		})
	}
	p.Wait()

	quotes := make([]CarrierQuote, 0, len(results))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

// ==================== 令牌 ====================

type correiosTokenResponse struct {
	Token    string `json:"token"`
	ExpiraEm string `json:"expiraEm"`
}

func (c *CorreiosClient) token(ctx context.Context, creds *model.CarrierCredentials) (string, error) {
	key := correiosTokenPrefix + creds.CartaoPostagem
	if token, ok := c.tokens.Get(key); ok {
		return token, nil
	}

	// 刷新请求由所有等待者共享，不随发起者的 ctx 取消
	ch := c.group.DoChan(key, func() (any, error) {
		// 双重检查：排队期间可能已被其他请求刷新
		if token, ok := c.tokens.Get(key); ok {
			return token, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		var result correiosTokenResponse
		resp, err := c.http.R().
			SetContext(fetchCtx).
			SetBasicAuth(creds.User, creds.Password).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"numero": creds.CartaoPostagem}).
			SetResult(&result).
			Post(correiosTokenPath)
		if err != nil {
			return "", err
		}
		if resp.IsError() {
			return "", fmt.Errorf("%w: HTTP %d", errCorreiosAuth, resp.StatusCode())
		}
		if result.Token == "" {
			return "", fmt.Errorf("%w: 响应缺少 token", errCorreiosAuth)
		}

		c.tokens.Set(key, result.Token, c.tokenTTL)
		c.log.Info("[Correios] 令牌已刷新", zap.String("cartao", maskCartao(creds.CartaoPostagem)))
		return result.Token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ==================== 价格与时效 ====================

type correiosPriceResponse struct {
	PcFinal      any `json:"pcFinal"`
	VlTotalPreco any `json:"vlTotalPreco"`
	PcBase       any `json:"pcBase"`
}

type correiosDeadlineResponse struct {
	PrazoEntrega any `json:"prazoEntrega"`
	Prazo        any `json:"prazo"`
}

func (c *CorreiosClient) quoteService(ctx context.Context, token string, svc CarrierService, originZip, destZip string, parcel Parcel) (*CarrierQuote, error) {
	var price correiosPriceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"cepOrigem":   originZip,
			"cepDestino":  destZip,
			"psObjeto":    fmt.Sprintf("%d", int64(math.Round(parcel.WeightKg*1000))),
			"tpObjeto":    correiosObjectType,
			"comprimento": fmt.Sprintf("%d", int64(math.Ceil(parcel.LengthCm))),
			"largura":     fmt.Sprintf("%d", int64(math.Ceil(parcel.WidthCm))),
			"altura":      fmt.Sprintf("%d", int64(math.Ceil(parcel.HeightCm))),
		}).
		SetResult(&price).
		Get(fmt.Sprintf(correiosPricePath, svc.Code))
	if err != nil {
		return nil, fmt.Errorf("价格请求失败: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, errCorreiosAuth
	}
	if resp.IsError() {
		return nil, fmt.Errorf("价格接口返回 HTTP %d", resp.StatusCode())
	}

	amount, ok := firstPositiveAmount(price.PcFinal, price.VlTotalPreco, price.PcBase)
	if !ok {
		return nil, errors.New("响应中无有效价格")
	}

	return &CarrierQuote{
		Service:      svc.Code,
		Name:         svc.Name,
		PriceAmount:  toCents(amount),
		DeliveryDays: c.deadline(ctx, token, svc, originZip, destZip),
		Source:       QuoteSourceAPI,
	}, nil
}

// deadline 时效查询失败不影响报价，返回 0 表示未知
func (c *CorreiosClient) deadline(ctx context.Context, token string, svc CarrierService, originZip, destZip string) int {
	var result correiosDeadlineResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"cepOrigem":  originZip,
			"cepDestino": destZip,
		}).
		SetResult(&result).
		Get(fmt.Sprintf(correiosDeadlinePath, svc.Code))
	if err != nil || resp.IsError() {
		c.log.Debug("[Correios] 时效查询失败", zap.String("service", svc.Code), zap.Error(err))
		return 0
	}

	for _, raw := range []any{result.PrazoEntrega, result.Prazo} {
		if days, ok := parseAmount(raw); ok && days.IsPositive() {
			return int(days.IntPart())
		}
	}
	return 0
}

// SweepTokens 清理过期令牌
func (c *CorreiosClient) SweepTokens() int {
	return c.tokens.Sweep()
}

// ==================== 工具函数 ====================

func firstPositiveAmount(values ...any) (decimal.Decimal, bool) {
	for _, raw := range values {
		if raw == nil {
			continue
		}
		amount, ok := parseAmount(raw)
		if !ok {
			continue
		}
		if amount.IsPositive() {
			return amount.Round(2), true
		}
		return decimal.Zero, false
	}
	return decimal.Zero, false
}

// parseAmount 兼容数字与 "25,50" 形式的字符串
func parseAmount(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		s := strings.TrimSpace(v)
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func maskCartao(cartao string) string {
	if len(cartao) <= 4 {
		return "****"
	}
	return cartao[:4] + "****"
}
