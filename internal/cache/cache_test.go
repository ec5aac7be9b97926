package cache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, int](4, time.Minute)
	defer c.Close()

	c.Set("gas", 25)
	got, ok := c.Get("gas")
	if !ok || got != 25 {
		t.Fatalf("Get = %d, %v", got, ok)
	}

	c.Delete("gas")
	if _, ok := c.Get("gas"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestCache_Expires(t *testing.T) {
	c := New[string, int](4, 20*time.Millisecond)
	defer c.Close()

	c.Set("gas", 25)
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("gas"); ok {
		t.Error("expected entry to expire")
	}
}

func TestCache_EvictsOldest(t *testing.T) {
	c := New[int, int](2, time.Minute)
	defer c.Close()

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	if _, ok := c.Get(1); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}
