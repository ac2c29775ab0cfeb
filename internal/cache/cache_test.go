package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	if _, found := c.Get("a"); found {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", "one")
	v, found := c.Get("a")
	if !found || v != "one" {
		t.Errorf("expected hit with 'one', got %q found=%v", v, found)
	}
}

func TestOverwrite(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	c.Set("a", "one")
	c.Set("a", "two")

	if v, _ := c.Get("a"); v != "two" {
		t.Errorf("expected overwritten value 'two', got %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh recency so "b" is oldest
	c.Set("c", 3)

	if _, found := c.Get("b"); found {
		t.Error("expected least recently used entry evicted")
	}
	if _, found := c.Get("a"); !found {
		t.Error("expected recently used entry kept")
	}
	if _, found := c.Get("c"); !found {
		t.Error("expected new entry present")
	}
}

func TestExpiry(t *testing.T) {
	c := NewLRUCache[string](4, 10*time.Millisecond)

	c.Set("a", "one")
	time.Sleep(20 * time.Millisecond)

	if _, found := c.Get("a"); found {
		t.Error("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry removed on read, size %d", c.Size())
	}
}

func TestDelete(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)

	c.Set("a", "one")
	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("expected deleted entry to miss")
	}

	// Deleting an absent key is a no-op.
	c.Delete("missing")
}

func TestCleanExpired(t *testing.T) {
	c := NewLRUCache[string](4, 10*time.Millisecond)

	c.Set("a", "one")
	c.Set("b", "two")
	time.Sleep(20 * time.Millisecond)
	c.Set("c", "three")

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("expected 2 expired entries cleaned, got %d", n)
	}
	if _, found := c.Get("c"); !found {
		t.Error("expected live entry kept")
	}
}

func TestManagerSweep(t *testing.T) {
	c := NewLRUCache[string](4, 5*time.Millisecond)
	c.Set("a", "one")

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	deadline := time.After(time.Second)
	for c.Size() > 0 {
		select {
		case <-deadline:
			t.Fatal("expected sweep to remove expired entry")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
