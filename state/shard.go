package state

import "github.com/cespare/xxhash/v2"

// defaultShardCount is the default number of shards backing the store's
// account-window map when the caller does not override it via
// config.Config.ShardCount. Picked so that ingestion on distinct accounts
// never contends on the same per-shard lock under realistic fan-out.
const defaultShardCount = 32

// shardFor picks a deterministic shard index for key, using the same
// hash family (xxhash) that go-redis uses for its own ring-client node
// selection — consistent, cheap, and already present in the dependency
// graph via redis/go-redis's indirect requirement on cespare/xxhash.
func shardFor(key string, n int) int {
	return int(xxhash.Sum64String(key) % uint64(n))
}
