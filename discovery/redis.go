package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"hop.computer/dossh/common"
	"hop.computer/dossh/keys"
)

const redisKeyPrefix = "dossh:peer:"

// record is the JSON form stored in Redis.
type record struct {
	Addresses []string  `json:"addresses"`
	Updated   time.Time `json:"updated"`
}

// RedisRegistry is a shared directory of peer addresses. Servers publish
// their listen addresses with a TTL and clients resolve through it.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Resolver = &RedisRegistry{}

// NewRedisRegistry connects to the Redis server named by a redis:// URL and
// checks that it answers.
func NewRedisRegistry(url string, ttl time.Duration) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = common.DefaultRegistryTTL
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisRegistry{client: rdb, ttl: ttl}, nil
}

func redisKey(peer keys.PeerID) string {
	return redisKeyPrefix + peer.String()
}

// Publish stores addrs for peer. The record expires after the registry TTL.
func (r *RedisRegistry) Publish(ctx context.Context, peer keys.PeerID, addrs []string) error {
	data, err := json.Marshal(record{Addresses: addrs, Updated: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(peer), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Unpublish removes the record for peer.
func (r *RedisRegistry) Unpublish(ctx context.Context, peer keys.PeerID) error {
	return r.client.Del(ctx, redisKey(peer)).Err()
}

// Advertise publishes addrs now and then every half TTL until ctx is done,
// and removes the record on the way out.
func (r *RedisRegistry) Advertise(ctx context.Context, peer keys.PeerID, addrs []string) error {
	if err := r.Publish(ctx, peer, addrs); err != nil {
		return err
	}
	t := time.NewTicker(r.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			cleanup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return r.Unpublish(cleanup, peer)
		case <-t.C:
			if err := r.Publish(ctx, peer, addrs); err != nil {
				logrus.Warnf("discovery: refreshing registry entry: %s", err)
			}
		}
	}
}

// Resolve implements Resolver.
func (r *RedisRegistry) Resolve(ctx context.Context, peer keys.PeerID) ([]string, error) {
	val, err := r.client.Get(ctx, redisKey(peer)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("bad registry record for %s: %w", peer.Short(), err)
	}
	return rec.Addresses, nil
}

// Close releases the Redis connection pool.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
