package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const diskExt = ".zst"

// DiskCache stores zstd-compressed entries as files in one directory.
// Eviction removes the least recently accessed files first.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64
	index    map[string]*diskEntry

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	path       string
	size       int64
	lastAccess time.Time
}

// NewDiskCache opens (creating if needed) a cache directory holding at most
// capacity compressed bytes. Existing entries are picked up.
func NewDiskCache(dir string, capacity int64) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		encoder:  enc,
		decoder:  dec,
	}
	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

func (dc *DiskCache) scan() error {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(e.Name(), diskExt)
		dc.index[key] = &diskEntry{
			path:       filepath.Join(dc.dir, e.Name()),
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		dc.size += info.Size()
	}
	return nil
}

// Get returns the decompressed value for key.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}
	raw, err := os.ReadFile(entry.path)
	if err == nil {
		var data []byte
		data, err = dc.decoder.DecodeAll(raw, nil)
		if err == nil {
			now := time.Now()
			entry.lastAccess = now
			_ = os.Chtimes(entry.path, now, now)
			dc.stats.Hits++
			return data, true
		}
	}

	// missing or corrupted file
	dc.removeLocked(key)
	dc.stats.Misses++
	return nil, false
}

// Put compresses value and writes it under key.
func (dc *DiskCache) Put(key string, value []byte) error {
	compressed := dc.encoder.EncodeAll(value, nil)
	n := int64(len(compressed))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if n > dc.capacity {
		return ErrItemTooLarge
	}
	dc.removeLocked(key)
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictOldestLocked()
	}

	path := filepath.Join(dc.dir, key+diskExt)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit cache file: %w", err)
	}

	dc.index[key] = &diskEntry{path: path, size: n, lastAccess: time.Now()}
	dc.size += n
	return nil
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.removeLocked(key)
}

// Clear removes every entry.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for key := range dc.index {
		dc.removeLocked(key)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	s := dc.stats
	s.Capacity = dc.capacity
	s.Size = dc.size
	s.Items = len(dc.index)
	return s
}

// Close releases the codec resources.
func (dc *DiskCache) Close() error {
	dc.decoder.Close()
	return dc.encoder.Close()
}

func (dc *DiskCache) removeLocked(key string) {
	entry, ok := dc.index[key]
	if !ok {
		return
	}
	_ = os.Remove(entry.path)
	dc.size -= entry.size
	delete(dc.index, key)
}

func (dc *DiskCache) evictOldestLocked() {
	keys := make([]string, 0, len(dc.index))
	for k := range dc.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return dc.index[keys[i]].lastAccess.Before(dc.index[keys[j]].lastAccess)
	})
	dc.removeLocked(keys[0])
	dc.stats.Evictions++
}
