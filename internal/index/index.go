// Package index defines the contract between the harness and the key-value
// index under test, and a registry that maps backend names to constructors.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Index is the external index contract. Keys and values have the fixed
// widths given in Config. All methods must be safe for concurrent use.
type Index interface {
	// Find copies the stored value into valueOut and reports whether the
	// key exists.
	Find(key []byte, valueOut []byte) bool
	// Insert stores a new key. It reports false if the key already exists.
	Insert(key, value []byte) bool
	// Update overwrites an existing key. It reports false if the key is
	// absent.
	Update(key, value []byte) bool
	// Remove deletes a key and reports whether it existed.
	Remove(key []byte) bool
	// Scan copies up to count values of keys >= key, in key order, into
	// valuesOut and returns how many were copied.
	Scan(key []byte, count int, valuesOut []byte) int
	Close() error
}

// BulkLoader is implemented by indexes that can ingest the whole data set in
// one call.
// data holds count records, each a key immediately followed by its value.
type BulkLoader interface {
	BulkLoad(data []byte, count int) error
}

// Config is handed to a backend constructor.
type Config struct {
	KeySize   int               `yaml:"key_size" json:"key_size"`
	ValueSize int               `yaml:"value_size" json:"value_size"`
	Threads   int               `yaml:"threads" json:"threads"`
	Path      string            `yaml:"path" json:"path"`
	Addr      string            `yaml:"addr" json:"addr"`
	InMemory  bool              `yaml:"in_memory" json:"in_memory"`
	Options   map[string]string `yaml:"options" json:"options"`
}

// RecordSize is the width of one bulk-load record.
func (c Config) RecordSize() int { return c.KeySize + c.ValueSize }

// Option returns a backend-specific option or def when unset.
func (c Config) Option(name, def string) string {
	if v, ok := c.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// Factory opens an index.
type Factory func(cfg Config) (Index, error)

var (
	ErrUnknownIndex  = errors.New("unknown index")
	ErrBulkLoad      = errors.New("bulk load not supported")
	ErrBadRecordSize = errors.New("bulk load data size mismatch")

	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under name. It panics on duplicate
// names, like database/sql drivers.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("index: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("index: Register called twice for " + name)
	}
	registry[name] = factory
}

// Open constructs the named backend.
func Open(name string, cfg Config) (Index, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownIndex, name, Names())
	}
	idx, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %q: %w", name, err)
	}
	return idx, nil
}

// Names lists the registered backends in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SplitRecords walks bulk-load data and calls fn for each key/value pair.
func SplitRecords(data []byte, count int, cfg Config, fn func(key, value []byte) error) error {
	rs := cfg.RecordSize()
	if rs <= 0 || len(data) != count*rs {
		return fmt.Errorf("%w: %d bytes for %d records of %d bytes", ErrBadRecordSize, len(data), count, rs)
	}
	for i := 0; i < count; i++ {
		rec := data[i*rs : (i+1)*rs]
		if err := fn(rec[:cfg.KeySize], rec[cfg.KeySize:]); err != nil {
			return err
		}
	}
	return nil
}
