// Package badgerdb runs the benchmark against a Badger LSM tree.
package badgerdb

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"kvbench/internal/index"
)

const Name = "badger"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return Open(ConfigFrom(cfg))
	})
}

var (
	errExists  = errors.New("key exists")
	errMissing = errors.New("key missing")
)

type Config struct {
	DataPath   string
	InMemory   bool
	SyncWrites bool
	ValueLogGC bool
	GCInterval time.Duration
	KeySize    int
	ValueSize  int
}

// ConfigFrom maps generic index settings onto Badger options. Options
// understood: sync_writes, value_log_gc, gc_interval.
func ConfigFrom(cfg index.Config) Config {
	c := Config{
		DataPath:   cfg.Path,
		InMemory:   cfg.InMemory || cfg.Path == "",
		SyncWrites: cfg.Option("sync_writes", "false") == "true",
		ValueLogGC: cfg.Option("value_log_gc", "true") == "true",
		GCInterval: 5 * time.Minute,
		KeySize:    cfg.KeySize,
		ValueSize:  cfg.ValueSize,
	}
	if d, err := time.ParseDuration(cfg.Option("gc_interval", "")); err == nil && d > 0 {
		c.GCInterval = d
	}
	return c
}

// DB implements index.Index and index.BulkLoader. Insert, Update and Remove
// are read-check-write transactions; a conflicting concurrent transaction
// makes the operation fail rather than retry.
type DB struct {
	db        *badger.DB
	keySize   int
	valueSize int
	stop      chan struct{}
	done      chan struct{}
}

var (
	_ index.Index      = (*DB)(nil)
	_ index.BulkLoader = (*DB)(nil)
)

func Open(config Config) (*DB, error) {
	opts := badger.DefaultOptions(config.DataPath)
	if config.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	opts = opts.WithSyncWrites(config.SyncWrites)
	opts = opts.WithLogger(nil) // Disable badger's default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	d := &DB{db: db, keySize: config.KeySize, valueSize: config.ValueSize}
	if config.ValueLogGC && !config.InMemory {
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.runGC(config.GCInterval)
	}
	return d, nil
}

func (d *DB) Find(key []byte, valueOut []byte) bool {
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			copy(valueOut, v)
			return nil
		})
	})
	return err == nil
}

func (d *DB) Insert(key, value []byte) bool {
	err := d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return errExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(copyBytes(key), copyBytes(value))
	})
	return err == nil
}

func (d *DB) Update(key, value []byte) bool {
	err := d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errMissing
			}
			return err
		}
		return txn.Set(copyBytes(key), copyBytes(value))
	})
	return err == nil
}

func (d *DB) Remove(key []byte) bool {
	err := d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errMissing
			}
			return err
		}
		return txn.Delete(copyBytes(key))
	})
	return err == nil
}

func (d *DB) Scan(key []byte, count int, valuesOut []byte) int {
	n := 0
	_ = d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = count
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(key); it.Valid() && n < count; it.Next() {
			slot := valuesOut[n*d.valueSize : (n+1)*d.valueSize]
			if err := it.Item().Value(func(v []byte) error {
				copy(slot, v)
				return nil
			}); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n
}

// BulkLoad writes records through a WriteBatch, bypassing transactions.
func (d *DB) BulkLoad(data []byte, count int) error {
	cfg := index.Config{KeySize: d.keySize, ValueSize: d.valueSize}
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()

	err := index.SplitRecords(data, count, cfg, func(key, value []byte) error {
		return wb.Set(copyBytes(key), copyBytes(value))
	})
	if err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush badger write batch: %w", err)
	}
	return nil
}

// Size reports the LSM and value log sizes in bytes.
func (d *DB) Size() (lsm, vlog int64) {
	return d.db.Size()
}

func (d *DB) Close() error {
	if d.stop != nil {
		close(d.stop)
		<-d.done
	}
	return d.db.Close()
}

func (d *DB) runGC(interval time.Duration) {
	defer close(d.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			again := true
			for again {
				err := d.db.RunValueLogGC(0.7)
				again = err == nil
			}
			slog.Debug("Badger value log garbage collection completed")
		}
	}
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
