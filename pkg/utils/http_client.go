package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// NewHTTPClient 创建统一配置的 Resty 客户端
// 外部调用不在请求链路内重试，失败由调用方降级处理
func NewHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "Storefront-Go/1.0").
		SetHeader("Accept", "application/json")

	if baseURL != "" {
		client.SetBaseURL(baseURL)
	}
	return client
}

// OnlyDigits 仅保留数字字符
func OnlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
