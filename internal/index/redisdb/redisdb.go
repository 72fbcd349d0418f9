// Package redisdb runs the benchmark against a Redis server. Values live in
// plain string keys; a sorted set with every score at zero keeps the key
// order for scans (ZRANGEBYLEX compares members bytewise).
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"kvbench/internal/index"
)

const Name = "redis"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return Open(context.Background(), cfg)
	})
}

// DB implements index.Index and index.BulkLoader.
type DB struct {
	client    *redis.Client
	cfg       index.Config
	namespace string
	ordered   string
	timeout   time.Duration
}

var (
	_ index.Index      = (*DB)(nil)
	_ index.BulkLoader = (*DB)(nil)
)

// Open connects to cfg.Addr (default localhost:6379). Options: "db",
// "password", "namespace" (key prefix, default "kvbench:"), "timeout" and
// "reset" (drop keys left by a previous run, default true).
func Open(ctx context.Context, cfg index.Config) (*DB, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum, err := strconv.Atoi(cfg.Option("db", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid redis db option: %w", err)
	}
	timeout, err := time.ParseDuration(cfg.Option("timeout", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid redis timeout option: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Option("password", ""),
		DB:       dbNum,
		PoolSize: max(cfg.Threads*2, 10),
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	ns := cfg.Option("namespace", "kvbench:")
	d := &DB{
		client:    client,
		cfg:       cfg,
		namespace: ns,
		ordered:   ns + "__order",
		timeout:   timeout,
	}
	if cfg.Option("reset", "true") == "true" {
		if err := d.Reset(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *DB) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

func (d *DB) key(k []byte) string {
	return d.namespace + string(k)
}

func (d *DB) Find(key []byte, valueOut []byte) bool {
	ctx, cancel := d.ctx()
	defer cancel()

	v, err := d.client.Get(ctx, d.key(key)).Bytes()
	if err != nil {
		return false
	}
	copy(valueOut, v)
	return true
}

func (d *DB) Insert(key, value []byte) bool {
	ctx, cancel := d.ctx()
	defer cancel()

	ok, err := d.client.SetNX(ctx, d.key(key), value, 0).Result()
	if err != nil || !ok {
		return false
	}
	return d.client.ZAdd(ctx, d.ordered, &redis.Z{Score: 0, Member: string(key)}).Err() == nil
}

func (d *DB) Update(key, value []byte) bool {
	ctx, cancel := d.ctx()
	defer cancel()

	ok, err := d.client.SetXX(ctx, d.key(key), value, 0).Result()
	return err == nil && ok
}

func (d *DB) Remove(key []byte) bool {
	ctx, cancel := d.ctx()
	defer cancel()

	n, err := d.client.Del(ctx, d.key(key)).Result()
	if err != nil || n == 0 {
		return false
	}
	d.client.ZRem(ctx, d.ordered, string(key))
	return true
}

func (d *DB) Scan(key []byte, count int, valuesOut []byte) int {
	ctx, cancel := d.ctx()
	defer cancel()

	members, err := d.client.ZRangeByLex(ctx, d.ordered, &redis.ZRangeBy{
		Min:   "[" + string(key),
		Max:   "+",
		Count: int64(count),
	}).Result()
	if err != nil || len(members) == 0 {
		return 0
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = d.namespace + m
	}
	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0
	}

	vs := d.cfg.ValueSize
	n := 0
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		copy(valuesOut[n*vs:(n+1)*vs], s)
		n++
	}
	return n
}

// BulkLoad pipelines the records in chunks.
func (d *DB) BulkLoad(data []byte, count int) error {
	const chunk = 1000
	ctx := context.Background()
	pipe := d.client.Pipeline()
	queued := 0

	flush := func() error {
		if queued == 0 {
			return nil
		}
		queued = 0
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis bulk load failed: %w", err)
		}
		return nil
	}

	err := index.SplitRecords(data, count, d.cfg, func(key, value []byte) error {
		pipe.Set(ctx, d.key(key), value, 0)
		pipe.ZAdd(ctx, d.ordered, &redis.Z{Score: 0, Member: string(key)})
		queued++
		if queued >= chunk {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// Reset deletes every key recorded in the order set, then the set itself.
func (d *DB) Reset(ctx context.Context) error {
	const batch = 1000
	for {
		members, err := d.client.ZRange(ctx, d.ordered, 0, batch-1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to list redis keys: %w", err)
		}
		if len(members) == 0 {
			break
		}
		keys := make([]string, len(members))
		args := make([]interface{}, len(members))
		for i, m := range members {
			keys[i] = d.namespace + m
			args[i] = m
		}
		if _, err := d.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, keys...)
			p.ZRem(ctx, d.ordered, args...)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to reset redis keys: %w", err)
		}
	}
	return d.client.Del(ctx, d.ordered).Err()
}

func (d *DB) Close() error {
	return d.client.Close()
}
