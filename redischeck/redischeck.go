// Package redischeck persists cross-account correlation state to Redis:
// cluster assignments on a periodic checkpoint, and each canary token as it
// is registered. On startup only the canary registry is restored; cluster
// assignments are written but not read back. Account windows
// themselves are not checkpointed — they rebuild quickly from live
// traffic and are large relative to their restart-time value; only the
// state that took real wall-clock time to accumulate (cluster edges,
// outstanding canaries) is worth the round trip.
package redischeck

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultKeyPrefix = "gw:"
const canaryTTL = 90 * 24 * time.Hour

// Persistence checkpoints a Store's cluster assignments to Redis on an
// interval, saves canary tokens one by one, and can restore canaries at
// startup.
type Persistence struct {
	client *redis.Client
	store  *state.Store
	prefix string
	log    zerolog.Logger
}

// New builds a Persistence backed by a Redis client constructed from
// redisURL.
func New(redisURL string, store *state.Store, log zerolog.Logger) (*Persistence, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Persistence{
		client: redis.NewClient(opt),
		store:  store,
		prefix: defaultKeyPrefix,
		log:    log,
	}, nil
}

// Ping verifies connectivity at startup.
func (p *Persistence) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// RunCheckpointLoop saves a checkpoint every interval until ctx is
// cancelled. A failed checkpoint is logged and retried on the next tick;
// Redis unavailability must never block ingestion.
func (p *Persistence) RunCheckpointLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.SaveCheckpoint(ctx); err != nil {
				p.log.Error().Err(err).Msg("redis checkpoint failed")
			}
		}
	}
}

// SaveCheckpoint persists every cluster's member set and each member's
// account->cluster key, then stamps the checkpoint timestamp. Canary
// tokens are not written here; SaveCanary stores them.
func (p *Persistence) SaveCheckpoint(ctx context.Context) error {
	n := p.store.NClusters()
	pipe := p.client.Pipeline()
	for cid := uint64(1); n > 0 && cid <= uint64(n)*4; cid++ {
		members := p.store.ClusterMembers(cid)
		if len(members) == 0 {
			continue
		}
		key := p.prefix + "cluster:" + itoa(cid) + ":members"
		pipe.Del(ctx, key)
		args := make([]interface{}, len(members))
		for i, m := range members {
			args[i] = m
			pipe.Set(ctx, p.prefix+"account:"+m+":cluster", itoa(cid), 0)
		}
		pipe.SAdd(ctx, key, args...)
		n--
	}
	pipe.Set(ctx, p.prefix+"meta:checkpoint", time.Now().Unix(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// SaveCanary persists a single canary token's record with a 90-day TTL,
// called inline whenever the action gate registers a new one so the
// registry survives a restart without waiting for the next checkpoint
// tick.
func (p *Persistence) SaveCanary(ctx context.Context, tok events.CanaryToken) error {
	payload, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.prefix+"canary:"+tok.Token, payload, canaryTTL).Err()
}

// RestoreCanaries loads every persisted canary token back into the store.
// Intended to run once at startup before the ingest loop begins.
func (p *Persistence) RestoreCanaries(ctx context.Context) error {
	iter := p.client.Scan(ctx, 0, p.prefix+"canary:*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := p.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var tok events.CanaryToken
		if err := json.Unmarshal([]byte(val), &tok); err != nil {
			p.log.Warn().Err(err).Str("key", iter.Val()).Msg("skipping malformed canary checkpoint")
			continue
		}
		p.store.RegisterCanary(tok)
	}
	return iter.Err()
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
