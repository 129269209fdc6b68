package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemory_BasicOperations(t *testing.T) {
	m := NewMemory(1024)

	key := Key("Como se chama?", "Kore")
	clip := []byte("pcm-bytes")

	if err := m.Put(key, clip); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := m.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(got) != string(clip) {
		t.Errorf("clip mismatch: got %s, want %s", got, clip)
	}
	if m.Size() != int64(len(clip)) {
		t.Errorf("Size = %d, want %d", m.Size(), len(clip))
	}

	m.Delete(key)
	if m.Contains(key) {
		t.Error("key still present after Delete")
	}
	if m.Size() != 0 {
		t.Errorf("Size not zero after Delete: %d", m.Size())
	}
}

func TestMemory_LRUEviction(t *testing.T) {
	m := NewMemory(100)

	for i := 0; i < 5; i++ {
		if err := m.Put(fmt.Sprintf("key-%d", i), make([]byte, 20)); err != nil {
			t.Fatalf("Put key-%d failed: %v", i, err)
		}
	}

	m.Get("key-0")
	m.Get("key-1")

	if err := m.Put("key-new", make([]byte, 30)); err != nil {
		t.Fatalf("Put key-new failed: %v", err)
	}

	for _, gone := range []string{"key-2", "key-3"} {
		if m.Contains(gone) {
			t.Errorf("%s should have been evicted", gone)
		}
	}
	for _, kept := range []string{"key-0", "key-1", "key-4", "key-new"} {
		if !m.Contains(kept) {
			t.Errorf("%s should still be cached", kept)
		}
	}
	if st := m.Stats(); st.Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", st.Evictions)
	}
}

func TestMemory_ItemTooLarge(t *testing.T) {
	m := NewMemory(10)
	if err := m.Put("big", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("err = %v, want ErrItemTooLarge", err)
	}
}

func TestMemory_UpdateAdjustsSize(t *testing.T) {
	m := NewMemory(100)
	_ = m.Put("k", make([]byte, 10))
	_ = m.Put("k", make([]byte, 40))

	if m.Size() != 40 {
		t.Errorf("Size = %d, want 40", m.Size())
	}
	if st := m.Stats(); st.Items != 1 {
		t.Errorf("Items = %d, want 1", st.Items)
	}
}

func TestMemory_Prune(t *testing.T) {
	m := NewMemory(100)
	_ = m.Put("old", []byte("a"))
	time.Sleep(20 * time.Millisecond)
	_ = m.Put("fresh", []byte("b"))

	if n := m.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if m.Contains("old") || !m.Contains("fresh") {
		t.Error("Prune removed the wrong entry")
	}
}

func TestMemory_HitRate(t *testing.T) {
	m := NewMemory(100)
	_ = m.Put("k", []byte("v"))
	m.Get("k")
	m.Get("k")
	m.Get("missing")

	st := m.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("hits=%d misses=%d", st.Hits, st.Misses)
	}
	if st.HitRate < 0.66 || st.HitRate > 0.67 {
		t.Errorf("HitRate = %f", st.HitRate)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(10 * 1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("w%d-%d", worker, j%10)
				_ = m.Put(key, make([]byte, 16))
				m.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if m.Size() > 10*1024 {
		t.Errorf("Size %d exceeds capacity", m.Size())
	}
}

func TestKey(t *testing.T) {
	a := Key("Olá", "Kore")
	if a != Key("Olá", "kore") {
		t.Error("voice case should not change the key")
	}
	if a == Key("Olá", "Puck") {
		t.Error("different voices must not share a key")
	}
	if len(a) != 32 {
		t.Errorf("key length = %d, want 32", len(a))
	}
}
