package cache

import (
	"github.com/charmbracelet/log"
)

// Config sizes the two cache levels.
type Config struct {
	// Dir holds the disk cache. Empty disables the disk level.
	Dir string
	// MemoryBytes bounds the in-memory level.
	MemoryBytes int64
	// DiskBytes bounds the disk level.
	DiskBytes int64
}

// DefaultConfig returns a 64 MB memory and 100 MB disk cache in dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		MemoryBytes: 64 << 20,
		DiskBytes:   100 << 20,
	}
}

// Manager reads through memory then disk, promoting disk hits to memory.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	logger *log.Logger
}

// NewManager builds both levels from cfg.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryBytes),
		logger: log.Default().WithPrefix("cache"),
	}
	if cfg.Dir != "" {
		disk, err := NewDiskCache(cfg.Dir, cfg.DiskBytes)
		if err != nil {
			return nil, err
		}
		m.disk = disk
	}
	return m, nil
}

// Get looks key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if v, ok := m.memory.Get(key); ok {
		return v, true
	}
	if m.disk == nil {
		return nil, false
	}
	v, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.memory.Put(key, v); err != nil {
		m.logger.Debug("not promoting disk hit", "key", key, "err", err)
	}
	return v, true
}

// Put stores value in both levels. Items too large for memory still go to
// disk.
func (m *Manager) Put(key string, value []byte) error {
	memErr := m.memory.Put(key, value)
	if m.disk == nil {
		return memErr
	}
	return m.disk.Put(key, value)
}

// Delete removes key from both levels.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	if m.disk != nil {
		m.disk.Delete(key)
	}
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	m.memory.Clear()
	if m.disk != nil {
		return m.disk.Clear()
	}
	return nil
}

// Stats returns counters for the memory and disk levels.
func (m *Manager) Stats() (memory, disk Stats) {
	memory = m.memory.Stats()
	if m.disk != nil {
		disk = m.disk.Stats()
	}
	return memory, disk
}

// Close releases the disk level.
func (m *Manager) Close() error {
	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}
