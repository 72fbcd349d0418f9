// Package leveldb runs the benchmark against goleveldb.
package leveldb

import (
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"kvbench/internal/index"
)

const Name = "leveldb"

// LevelDB has no conditional writes; check-then-write operations take one
// of these stripes to stay atomic per key.
const lockStripes = 256

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return Open(cfg)
	})
}

// DB implements index.Index and index.BulkLoader.
type DB struct {
	db    *leveldb.DB
	cfg   index.Config
	locks [lockStripes]sync.Mutex
}

var (
	_ index.Index      = (*DB)(nil)
	_ index.BulkLoader = (*DB)(nil)
)

// Open opens a database at cfg.Path, or in memory when InMemory is set or
// the path is empty. Option "sync" forces synchronous writes.
func Open(cfg index.Config) (*DB, error) {
	o := &opt.Options{
		NoSync: cfg.Option("sync", "false") != "true",
	}

	var (
		db  *leveldb.DB
		err error
	)
	if cfg.InMemory || cfg.Path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		db, err = leveldb.OpenFile(cfg.Path, o)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &DB{db: db, cfg: cfg}, nil
}

func (d *DB) lock(key []byte) *sync.Mutex {
	return &d.locks[murmur3.Sum32(key)%lockStripes]
}

func (d *DB) Find(key []byte, valueOut []byte) bool {
	v, err := d.db.Get(key, nil)
	if err != nil {
		return false
	}
	copy(valueOut, v)
	return true
}

func (d *DB) Insert(key, value []byte) bool {
	mu := d.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if ok, err := d.db.Has(key, nil); err != nil || ok {
		return false
	}
	return d.db.Put(key, value, nil) == nil
}

func (d *DB) Update(key, value []byte) bool {
	mu := d.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if ok, err := d.db.Has(key, nil); err != nil || !ok {
		return false
	}
	return d.db.Put(key, value, nil) == nil
}

func (d *DB) Remove(key []byte) bool {
	mu := d.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if ok, err := d.db.Has(key, nil); err != nil || !ok {
		return false
	}
	return d.db.Delete(key, nil) == nil
}

func (d *DB) Scan(key []byte, count int, valuesOut []byte) int {
	it := d.db.NewIterator(&util.Range{Start: key}, nil)
	defer it.Release()

	vs := d.cfg.ValueSize
	n := 0
	for n < count && it.Next() {
		copy(valuesOut[n*vs:(n+1)*vs], it.Value())
		n++
	}
	return n
}

// BulkLoad writes all records in one batch.
func (d *DB) BulkLoad(data []byte, count int) error {
	batch := new(leveldb.Batch)
	err := index.SplitRecords(data, count, d.cfg, func(key, value []byte) error {
		batch.Put(key, value)
		return nil
	})
	if err != nil {
		return err
	}
	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write leveldb batch: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
