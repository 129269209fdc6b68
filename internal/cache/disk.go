package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "clips.index"

	// Clips below this size are stored raw.
	compressThreshold = 1024
)

// Disk is the persistent tier. Clips are files named by key, optionally
// zstd-compressed, with a gob index saved on Close.
type Disk struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	Key        string
	Stored     int64 // bytes on disk
	Raw        int64 // bytes of PCM
	Compressed bool
	AddedAt    time.Time
	LastUsed   time.Time
}

// NewDisk opens or creates a disk tier in dir. A compression level of 0
// stores clips raw.
func NewDisk(dir string, capacity int64, compressionLevel int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	if compressionLevel > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		d.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	if err := d.loadIndex(); err != nil {
		// A broken index only costs us the old clips.
		d.index = make(map[string]*diskEntry)
	}
	for _, e := range d.index {
		d.size += e.Stored
	}
	return d, nil
}

// Get reads the clip for key. Missing or undecodable files are dropped
// from the index and reported as misses.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(d.path(key))
	if err == nil && entry.Compressed {
		if d.decoder == nil {
			err = ErrCacheCorrupted
		} else {
			data, err = d.decoder.DecodeAll(data, nil)
		}
	}
	if err != nil {
		d.drop(entry)
		d.stats.Misses++
		return nil, false
	}

	entry.LastUsed = time.Now()
	d.stats.Hits++
	return data, true
}

// Put writes clip under key, evicting least recently used clips to fit.
func (d *Disk) Put(key string, clip []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := clip
	compressed := false
	if d.encoder != nil && len(clip) > compressThreshold {
		if packed := d.encoder.EncodeAll(clip, nil); len(packed) < len(clip) {
			data = packed
			compressed = true
		}
	}

	stored := int64(len(data))
	if stored > d.capacity {
		return ErrItemTooLarge
	}

	if old, ok := d.index[key]; ok {
		d.drop(old)
	}
	for d.size+stored > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	if err := writeAtomic(d.path(key), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		Key:        key,
		Stored:     stored,
		Raw:        int64(len(clip)),
		Compressed: compressed,
		AddedAt:    now,
		LastUsed:   now,
	}
	d.size += stored
	return nil
}

// Delete removes key.
func (d *Disk) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.index[key]; ok {
		d.drop(entry)
	}
}

// Contains reports whether key is indexed.
func (d *Disk) Contains(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.index[key]
	return ok
}

// RemoveOlderThan drops clips added before cutoff.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for _, entry := range d.index {
		if entry.AddedAt.Before(cutoff) {
			d.drop(entry)
			removed++
		}
	}
	return removed
}

// Clear removes every clip and saves an empty index.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.index {
		d.drop(entry)
	}
	return d.saveIndex()
}

// Stats returns a snapshot of the tier counters. Size is bytes on disk.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Capacity = d.capacity
	s.Size = d.size
	s.Items = int64(len(d.index))
	s.finish()
	return s
}

// Close saves the index and releases the codecs.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		_ = d.encoder.Close()
	}
	if d.decoder != nil {
		d.decoder.Close()
	}
	return d.saveIndex()
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".pcm")
}

// drop must be called with the lock held.
func (d *Disk) drop(entry *diskEntry) {
	_ = os.Remove(d.path(entry.Key))
	d.size -= entry.Stored
	delete(d.index, entry.Key)
}

// evictOldest must be called with the lock held.
func (d *Disk) evictOldest() {
	entries := make([]*diskEntry, 0, len(d.index))
	for _, e := range d.index {
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastUsed.Before(entries[j].LastUsed)
	})
	d.drop(entries[0])
	d.stats.Evictions++
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	return gob.NewDecoder(f).Decode(&d.index)
}

func (d *Disk) saveIndex() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// writeAtomic writes to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
