package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the in-process LRU tier, bounded in bytes.
type Memory struct {
	capacity int64
	size     int64

	items map[string]*list.Element
	order *list.List // front = most recently used

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key     string
	clip    []byte
	addedAt time.Time
}

// NewMemory creates a memory tier holding up to capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the clip for key and marks it recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.order.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).clip, true
}

// Put stores clip under key, evicting least recently used clips as needed.
func (m *Memory) Put(key string, clip []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(clip))
	if n > m.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		m.size += n - int64(len(entry.clip))
		entry.clip = clip
		entry.addedAt = time.Now()
		m.order.MoveToFront(elem)
	} else {
		m.items[key] = m.order.PushFront(&memoryEntry{key: key, clip: clip, addedAt: time.Now()})
		m.size += n
	}

	for m.size > m.capacity && m.order.Len() > 1 {
		m.evict(m.order.Back())
	}
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
}

// Contains reports whether key is present without touching recency.
func (m *Memory) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// Clear drops every clip.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element)
	m.order.Init()
	m.size = 0
}

// Prune drops clips added before now-maxAge and returns how many went.
func (m *Memory) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for elem := m.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).addedAt.Before(cutoff) {
			m.remove(elem)
			pruned++
		}
		elem = prev
	}
	return pruned
}

// Size returns the bytes held.
func (m *Memory) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Stats returns a snapshot of the tier counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Capacity = m.capacity
	s.Size = m.size
	s.Items = int64(len(m.items))
	s.finish()
	return s
}

// evict must be called with the lock held.
func (m *Memory) evict(elem *list.Element) {
	if elem == nil {
		return
	}
	m.remove(elem)
	m.stats.Evictions++
}

// remove must be called with the lock held.
func (m *Memory) remove(elem *list.Element) {
	entry := m.order.Remove(elem).(*memoryEntry)
	delete(m.items, entry.key)
	m.size -= int64(len(entry.clip))
}
