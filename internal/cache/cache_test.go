package cache

import (
	"testing"
	"time"
)

func TestLRUSetGet(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh a
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a kept")
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[int](4, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to miss")
	}
	c.Set("b", 2)
	if cleaned := c.CleanExpired(); cleaned != 0 {
		t.Errorf("cleaned %d fresh entries", cleaned)
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRU[int](8, time.Minute)
	c.Set("u1:2025-09", 1)
	c.Set("u1:2025-08", 2)
	c.Set("u2:2025-09", 3)

	c.DeletePrefix("u1:")

	if _, ok := c.Get("u1:2025-09"); ok {
		t.Error("expected u1 entries dropped")
	}
	if _, ok := c.Get("u2:2025-09"); !ok {
		t.Error("expected u2 entry kept")
	}
}
