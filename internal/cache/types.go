package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when a clip exceeds the tier capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a stored clip cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Tier identifies where a clip was found.
type Tier int

const (
	TierNone Tier = iota
	TierMemory
	TierDisk
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	default:
		return "none"
	}
}

// Stats holds cache counters for one tier.
type Stats struct {
	Capacity  int64 // bytes
	Size      int64 // bytes
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

func (s *Stats) finish() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Config holds configuration for the clip store.
type Config struct {
	MemoryCapacity   int64         // bytes
	DiskCapacity     int64         // bytes
	Dir              string        // disk tier directory; empty disables the disk tier
	CompressionLevel int           // zstd level, 0 disables compression
	TTL              time.Duration // clips older than this are pruned
	PruneInterval    time.Duration // 0 disables background pruning
}

// DefaultConfig returns the default clip store configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     256 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		PruneInterval:    time.Hour,
	}
}

// Key derives the cache key for a cleaned text spoken by a voice.
func Key(text, voice string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", strings.ToLower(voice), text)))
	return hex.EncodeToString(sum[:16])
}
