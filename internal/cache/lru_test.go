// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRU_BasicOperations(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		got, ok := c.Get(key)
		if !ok || got != want {
			t.Errorf("Get(%q) = %d, %v, want %d, true", key, got, ok, want)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	c.Get("a")
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) found, want evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Get(%q) missing, want present", key)
		}
	}
}

func TestLRU_UpdateExisting(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, string](2, time.Minute)
	c.Add("k", "old")
	c.Add("k", "new")

	if got, _ := c.Get("k"); got != "new" {
		t.Errorf("Get(k) = %q, want %q", got, "new")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_Expiration(t *testing.T) {
	t.Parallel()

	c := NewLRU[int, int](10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Add(1, 100)
	c.Add(2, 200)

	now = now.Add(2 * time.Minute)
	c.Add(3, 300)

	if _, ok := c.Get(1); ok {
		t.Error("Get(1) found after ttl, want expired")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after expired Get", c.Len())
	}
	if got, ok := c.Get(3); !ok || got != 300 {
		t.Errorf("Get(3) = %d, %v, want 300, true", got, ok)
	}
}

func TestLRU_Clear(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](4, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	c.Add("z", 26)
	if _, ok := c.Get("z"); !ok {
		t.Error("Get(z) after Clear+Add missing")
	}
}

func TestLRU_Stats(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](2, time.Minute)
	c.Add("a", 1)
	c.Get("a")
	c.Get("missing")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d, %d, %d, want 1, 1, 1", hits, misses, size)
	}
}

func TestLRU_Defaults(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](0, 0)
	if c.capacity != 1024 {
		t.Errorf("capacity = %d, want 1024", c.capacity)
	}
	if c.ttl != 5*time.Minute {
		t.Errorf("ttl = %v, want 5m", c.ttl)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewLRU[string, int](100, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%50)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d, want <= 100", c.Len())
	}
}
