package utils

import (
	"testing"
	"time"
)

func TestTTLCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	c.Set("token", "abc", 50*time.Minute)

	if v, ok := c.Get("token"); !ok || v != "abc" {
		t.Errorf("Get() = %v, %v, want abc, true", v, ok)
	}

	now = now.Add(51 * time.Minute)
	if _, ok := c.Get("token"); ok {
		t.Errorf("过期条目仍可读取")
	}
}

func TestTTLCache_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewTTLCache()
	c.now = func() time.Time { return now }

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Hour)
	now = now.Add(2 * time.Minute)

	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if _, ok := c.Get("b"); !ok {
		t.Errorf("未过期条目被清理")
	}
	c.Delete("b")
	if _, ok := c.Get("b"); ok {
		t.Errorf("Delete 后仍可读取")
	}
}
