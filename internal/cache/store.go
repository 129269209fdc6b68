package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Store is the clip cache used by the synthesizer: memory first, then
// disk, with disk hits promoted to memory.
type Store struct {
	memory *Memory
	disk   *Disk // nil when no directory is configured
	config Config

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// StoreStats combines the tier counters.
type StoreStats struct {
	Memory Stats
	Disk   Stats
	OnDisk bool
}

// Open builds a store from config and starts background pruning when
// PruneInterval is set.
func Open(config Config) (*Store, error) {
	s := &Store{
		memory: NewMemory(config.MemoryCapacity),
		config: config,
		stop:   make(chan struct{}),
	}

	if config.Dir != "" {
		disk, err := NewDisk(config.Dir, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to open disk cache: %w", err)
		}
		s.disk = disk
	}

	if config.PruneInterval > 0 && config.TTL > 0 {
		s.wg.Add(1)
		go s.pruneLoop()
	}
	return s, nil
}

// Get looks key up in memory, then on disk.
func (s *Store) Get(key string) ([]byte, bool) {
	clip, _, ok := s.Lookup(key)
	return clip, ok
}

// Lookup is Get that also reports which tier answered.
func (s *Store) Lookup(key string) ([]byte, Tier, bool) {
	if clip, ok := s.memory.Get(key); ok {
		return clip, TierMemory, true
	}
	if s.disk == nil {
		return nil, TierNone, false
	}
	clip, ok := s.disk.Get(key)
	if !ok {
		return nil, TierNone, false
	}
	if err := s.memory.Put(key, clip); err != nil && !errors.Is(err, ErrItemTooLarge) {
		log.Debug("Could not promote clip", "key", key, "err", err)
	}
	return clip, TierDisk, true
}

// Put writes key to both tiers. Clips too large for a tier skip it.
func (s *Store) Put(key string, clip []byte) error {
	if err := s.memory.Put(key, clip); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory tier: %w", err)
	}
	if s.disk == nil {
		return nil
	}
	if err := s.disk.Put(key, clip); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("disk tier: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (s *Store) Delete(key string) {
	s.memory.Delete(key)
	if s.disk != nil {
		s.disk.Delete(key)
	}
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	s.memory.Clear()
	if s.disk != nil {
		return s.disk.Clear()
	}
	return nil
}

// Prune drops clips older than the configured TTL.
func (s *Store) Prune() int {
	n := s.memory.Prune(s.config.TTL)
	if s.disk != nil {
		n += s.disk.RemoveOlderThan(time.Now().Add(-s.config.TTL))
	}
	return n
}

// Stats returns the tier counters.
func (s *Store) Stats() StoreStats {
	st := StoreStats{Memory: s.memory.Stats()}
	if s.disk != nil {
		st.Disk = s.disk.Stats()
		st.OnDisk = true
	}
	return st
}

// Close stops pruning and saves the disk index.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	if s.disk != nil {
		return s.disk.Close()
	}
	return nil
}

func (s *Store) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Prune(); n > 0 {
				log.Debug("Pruned speech cache", "clips", n)
			}
		}
	}
}
