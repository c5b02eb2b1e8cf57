package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== SyncRateLimiter 提交限流器 ====================

// SyncRateLimiter 按 key 的冷却限流器
// 防止同一购物车短时间内重复提交结账
type SyncRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewSyncRateLimiter 创建限流器
func NewSyncRateLimiter() *SyncRateLimiter {
	return &SyncRateLimiter{}
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时记录本次时间
// key: 限流键，如 "store:1:cart:42:checkout"
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// Sweep 清理冷却已过期的条目，返回清理数量
func (r *SyncRateLimiter) Sweep(olderThan time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-olderThan)
	r.locks.Range(func(key, value any) bool {
		entry := value.(*lockEntry)
		entry.mu.Lock()
		stale := entry.lastTime.Before(cutoff)
		entry.mu.Unlock()
		if stale {
			r.locks.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// ==================== Key 与提示 ====================

// CheckoutInterval 同一购物车两次结账的最小间隔
const CheckoutInterval = 2 * time.Second

// CheckoutKey 结账限流 Key
func CheckoutKey(storeID, cartID int64) string {
	return fmt.Sprintf("store:%d:cart:%d:checkout", storeID, cartID)
}

// RetryMessage 格式化重试提示信息
func RetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds < 60 {
		return fmt.Sprintf("提交过于频繁，请 %d 秒后重试", seconds)
	}
	return fmt.Sprintf("提交过于频繁，请 %d 分 %d 秒后重试", seconds/60, seconds%60)
}
