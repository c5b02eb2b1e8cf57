package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront_checkout/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ==================== 测试桩 ====================

// memoryStores 内存店铺查找
type memoryStores struct {
	byID     map[int64]*model.Store
	bySlug   map[string]*model.Store
	byDomain map[string]*model.Store
}

func newMemoryStores(stores ...*model.Store) *memoryStores {
	m := &memoryStores{
		byID:     map[int64]*model.Store{},
		bySlug:   map[string]*model.Store{},
		byDomain: map[string]*model.Store{},
	}
	for _, s := range stores {
		m.byID[s.ID] = s
		m.bySlug[s.Slug] = s
	}
	return m
}

func (m *memoryStores) GetActiveByID(_ context.Context, id int64) (*model.Store, error) {
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryStores) GetActiveBySlug(_ context.Context, slug string) (*model.Store, error) {
	if s, ok := m.bySlug[slug]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryStores) GetActiveByDomain(_ context.Context, domain string) (*model.Store, error) {
	if s, ok := m.byDomain[domain]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newStore(id int64, slug string) *model.Store {
	s := &model.Store{Name: "Loja " + slug, Slug: slug}
	s.ID = id
	return s
}

// ==================== 租户识别 ====================

func TestResolveTenant(t *testing.T) {
	alpha := newStore(1, "alpha")
	beta := newStore(2, "beta")
	stores := newMemoryStores(alpha, beta)
	stores.byDomain["loja.beta.com.br"] = beta

	r := gin.New()
	r.Use(ResolveTenant(stores))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, GetStore(c).Slug)
	})

	tests := []struct {
		name     string
		host     string
		headers  map[string]string
		wantCode int
		wantSlug string
	}{
		{"按 ID", "", map[string]string{HeaderStoreID: "1"}, http.StatusOK, "alpha"},
		{"ID 优先于 slug", "", map[string]string{HeaderStoreID: "1", HeaderStoreSlug: "beta"}, http.StatusOK, "alpha"},
		{"按 slug", "", map[string]string{HeaderStoreSlug: " beta "}, http.StatusOK, "beta"},
		{"按域名", "Loja.Beta.com.br:8080", nil, http.StatusOK, "beta"},
		{"非法 ID", "", map[string]string{HeaderStoreID: "abc", HeaderStoreSlug: "beta"}, http.StatusNotFound, ""},
		{"未知店铺", "", map[string]string{HeaderStoreSlug: "gamma"}, http.StatusNotFound, ""},
		{"无任何标识", "unknown.example.com", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.host != "" {
				req.Host = tt.host
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantSlug != "" {
				assert.Equal(t, tt.wantSlug, w.Body.String())
			}
		})
	}
}

// ==================== JWT ====================

func adminEngine() *gin.Engine {
	r := gin.New()
	admin := r.Group("/admin", JWTAuth(), RequireRole(RoleStoreOwner, RolePlatformAdmin), RequireStoreScope())
	admin.GET("/store", func(c *gin.Context) {
		c.String(http.StatusOK, strconv.FormatInt(GetStoreID(c), 10))
	})
	return r
}

func TestJWTAuth_AdminScope(t *testing.T) {
	r := adminEngine()

	owner, err := GenerateAccessToken(10, 1, "dona", RoleStoreOwner)
	require.NoError(t, err)
	admin, err := GenerateAccessToken(1, 0, "root", RolePlatformAdmin)
	require.NoError(t, err)
	customer, err := GenerateAccessToken(20, 0, "cliente", RoleCustomer)
	require.NoError(t, err)

	tests := []struct {
		name      string
		auth      string
		storeHdr  string
		wantCode  int
		wantStore string
	}{
		{"未认证", "", "", http.StatusUnauthorized, ""},
		{"格式错误", "Token " + owner, "", http.StatusUnauthorized, ""},
		{"伪造 Token", "Bearer not.a.jwt", "", http.StatusUnauthorized, ""},
		{"顾客无权限", "Bearer " + customer, "", http.StatusForbidden, ""},
		{"店主", "Bearer " + owner, "", http.StatusOK, "1"},
		{"店主不能切换店铺", "Bearer " + owner, "99", http.StatusOK, "1"},
		{"平台管理员须指定店铺", "Bearer " + admin, "", http.StatusForbidden, ""},
		{"平台管理员指定店铺", "Bearer " + admin, "7", http.StatusOK, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/store", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.storeHdr != "" {
				req.Header.Set(HeaderStoreID, tt.storeHdr)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantStore != "" {
				assert.Equal(t, tt.wantStore, w.Body.String())
			}
		})
	}
}

func TestParseToken_ExpiredAndWrongSecret(t *testing.T) {
	original := GetJWTConfig()
	defer SetJWTConfig(original)

	SetJWTConfig(&JWTConfig{SecretKey: "s1", AccessTokenTTL: -time.Minute, Issuer: "test"})
	expired, err := GenerateAccessToken(1, 1, "x", RoleStoreOwner)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	SetJWTConfig(&JWTConfig{SecretKey: "s1", AccessTokenTTL: time.Minute, Issuer: "test"})
	token, err := GenerateAccessToken(1, 1, "x", RoleStoreOwner)
	require.NoError(t, err)
	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.StoreID)

	SetJWTConfig(&JWTConfig{SecretKey: "s2", AccessTokenTTL: time.Minute, Issuer: "test"})
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.Use(OptionalAuth())
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, strconv.FormatInt(GetUserID(c), 10))
	})

	token, err := GenerateAccessToken(33, 0, "cliente", RoleCustomer)
	require.NoError(t, err)

	for auth, want := range map[string]string{
		"":                "0",
		"Bearer garbage":  "0",
		"Bearer " + token: "33",
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String())
	}
}

// ==================== 限流 ====================

func TestSyncRateLimiter_Check(t *testing.T) {
	limiter := NewSyncRateLimiter()
	key := CheckoutKey(1, 42)
	assert.Equal(t, "store:1:cart:42:checkout", key)

	first := limiter.Check(key, time.Hour)
	assert.True(t, first.Allowed)

	second := limiter.Check(key, time.Hour)
	assert.False(t, second.Allowed)
	assert.Greater(t, second.RetryAfter, 59*time.Minute)

	// 不同购物车互不影响
	assert.True(t, limiter.Check(CheckoutKey(1, 43), time.Hour).Allowed)

	limiter.Reset(key)
	assert.True(t, limiter.Check(key, time.Hour).Allowed)
}

func TestSyncRateLimiter_ConcurrentSingleWinner(t *testing.T) {
	limiter := NewSyncRateLimiter()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Check("same", time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
}

func TestSyncRateLimiter_Sweep(t *testing.T) {
	limiter := NewSyncRateLimiter()
	limiter.Check("old", time.Second)
	time.Sleep(20 * time.Millisecond)
	limiter.Check("fresh", time.Second)

	assert.Equal(t, 1, limiter.Sweep(10*time.Millisecond))
	assert.True(t, limiter.Check("old", time.Second).Allowed)
	assert.False(t, limiter.Check("fresh", time.Second).Allowed)
}

func TestRetryMessage(t *testing.T) {
	assert.Equal(t, "提交过于频繁，请 1 秒后重试", RetryMessage(200*time.Millisecond))
	assert.Equal(t, "提交过于频繁，请 2 秒后重试", RetryMessage(2*time.Second))
	assert.Equal(t, "提交过于频繁，请 1 分 5 秒后重试", RetryMessage(65*time.Second))
}
