package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// speechLike returns a compressible buffer shaped like quiet PCM.
func speechLike(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		if i%64 == 0 {
			b[i] = byte(i / 64)
		}
	}
	return b
}

func TestDisk_RoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}

	clip := speechLike(8192)
	if err := d.Put("k", clip); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := d.Get("k")
	if !ok {
		t.Fatal("Get missed")
	}
	if !bytes.Equal(got, clip) {
		t.Error("clip changed through compression")
	}

	st := d.Stats()
	if st.Size >= int64(len(clip)) {
		t.Errorf("stored size %d, expected compression below %d", st.Size, len(clip))
	}
}

func TestDisk_SmallClipsStoredRaw(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}

	clip := []byte("short")
	if err := d.Put("k", clip); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "k.pcm"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(raw, clip) {
		t.Error("small clip should be stored uncompressed")
	}
}

func TestDisk_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	clip := speechLike(4096)
	if err := d.Put("k", clip); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Get("k")
	if !ok || !bytes.Equal(got, clip) {
		t.Error("clip did not survive reopen")
	}
}

func TestDisk_MissingFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}
	_ = d.Put("k", []byte("data"))
	_ = os.Remove(filepath.Join(dir, "k.pcm"))

	if _, ok := d.Get("k"); ok {
		t.Error("expected miss for deleted file")
	}
	if d.Contains("k") {
		t.Error("index should forget the missing file")
	}
}

func TestDisk_EvictsLeastRecentlyUsed(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatalf("NewDisk failed: %v", err)
	}

	_ = d.Put("a", make([]byte, 40))
	time.Sleep(5 * time.Millisecond)
	_ = d.Put("b", make([]byte, 40))
	time.Sleep(5 * time.Millisecond)
	d.Get("a")
	_ = d.Put("c", make([]byte, 40))

	if d.Contains("b") {
		t.Error("b should have been evicted")
	}
	if !d.Contains("a") || !d.Contains("c") {
		t.Error("a and c should be cached")
	}
}

func TestStore_PromotesDiskHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	cfg.PruneInterval = 0

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close() //nolint:errcheck

	key := Key("Bom dia", "Kore")
	clip := speechLike(2048)
	if err := s.Put(key, clip); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.memory.Clear()
	if _, tier, ok := s.Lookup(key); !ok || tier != TierDisk {
		t.Fatalf("expected disk hit, got tier %s ok=%v", tier, ok)
	}
	if _, tier, ok := s.Lookup(key); !ok || tier != TierMemory {
		t.Errorf("expected promoted memory hit, got tier %s", tier)
	}
}

func TestStore_MemoryOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PruneInterval = 0

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = s.Put("k", []byte("v"))
	if _, ok := s.Get("k"); !ok {
		t.Error("memory-only store lost the clip")
	}
	if s.Stats().OnDisk {
		t.Error("no disk tier expected")
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := s.Get("k"); ok {
		t.Error("clip survived Clear")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
