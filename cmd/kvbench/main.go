// Command kvbench loads a key-value index and measures its throughput and
// latency under a configurable operation mix.
package main

import (
	"os"

	_ "kvbench/internal/index/badgerdb"
	_ "kvbench/internal/index/bloomfront"
	_ "kvbench/internal/index/btreemap"
	_ "kvbench/internal/index/dummy"
	_ "kvbench/internal/index/hashmap"
	_ "kvbench/internal/index/leveldb"
	_ "kvbench/internal/index/lrufront"
	_ "kvbench/internal/index/redisdb"
	_ "kvbench/internal/index/remote"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
