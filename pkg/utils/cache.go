package utils

import (
	"sync"
	"time"
)

// TTLCache 带过期时间的并发安全缓存（sync.Map 实现）
type TTLCache struct {
	items sync.Map
	now   func() time.Time
}

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      string
	expiration time.Time
}

// NewTTLCache 创建缓存
func NewTTLCache() *TTLCache {
	return &TTLCache{now: time.Now}
}

// Set 设置缓存
func (c *TTLCache) Set(key, value string, ttl time.Duration) {
	c.items.Store(key, cacheItem{
		value:      value,
		expiration: c.now().Add(ttl),
	})
}

// Get 获取缓存并验证是否过期
func (c *TTLCache) Get(key string) (string, bool) {
	val, ok := c.items.Load(key)
	if !ok {
		return "", false
	}

	item := val.(cacheItem)
	if c.now().After(item.expiration) {
		c.items.Delete(key) // 懒删除
		return "", false
	}
	return item.value, true
}

// Delete 删除缓存
func (c *TTLCache) Delete(key string) {
	c.items.Delete(key)
}

// Sweep 清理已过期条目，返回清理数量
func (c *TTLCache) Sweep() int {
	now := c.now()
	removed := 0
	c.items.Range(func(key, val any) bool {
		if now.After(val.(cacheItem).expiration) {
			c.items.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
