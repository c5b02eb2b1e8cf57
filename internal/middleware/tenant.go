package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront_checkout/internal/model"
)

// 租户识别请求头
const (
	HeaderStoreID   = "X-Store-Id"
	HeaderStoreSlug = "X-Store-Slug"

	ContextKeyStore = "store"
)

// StoreFinder 按 id / slug / 域名查找营业中的店铺
type StoreFinder interface {
	GetActiveByID(ctx context.Context, id int64) (*model.Store, error)
	GetActiveBySlug(ctx context.Context, slug string) (*model.Store, error)
	GetActiveByDomain(ctx context.Context, domain string) (*model.Store, error)
}

// ResolveTenant 识别当前店铺：X-Store-Id > X-Store-Slug > Host
func ResolveTenant(stores StoreFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := findStore(c, stores)
		if store == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "店铺不存在或已停用"})
			c.Abort()
			return
		}

		c.Set(ContextKeyStore, store)
		c.Next()
	}
}

func findStore(c *gin.Context, stores StoreFinder) *model.Store {
	ctx := c.Request.Context()

	if raw := c.GetHeader(HeaderStoreID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		store, err := stores.GetActiveByID(ctx, id)
		if err != nil {
			return nil
		}
		return store
	}

	if slug := strings.TrimSpace(c.GetHeader(HeaderStoreSlug)); slug != "" {
		store, err := stores.GetActiveBySlug(ctx, slug)
		if err != nil {
			return nil
		}
		return store
	}

	host := c.Request.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return nil
	}
	store, err := stores.GetActiveByDomain(ctx, strings.ToLower(host))
	if err != nil {
		return nil
	}
	return store
}

// GetStore 从 Context 获取当前店铺
func GetStore(c *gin.Context) *model.Store {
	if store, exists := c.Get(ContextKeyStore); exists {
		return store.(*model.Store)
	}
	return nil
}
