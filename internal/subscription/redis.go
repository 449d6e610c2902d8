package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Delimiter separates key from JSON(value) in the sorted-set member
// encoding. It must not appear in any key added to a RedisSet; add
// validates this precondition rather than attempting to escape it.
const Delimiter = ">"

// RedisSet stores members as key⟨Delimiter⟩value in a Redis sorted set,
// scored by absolute expiry (epoch ms). A side index hash maps key to its
// current member string so Get can look a key up without a full scan.
type RedisSet struct {
	client    *redis.Client
	setKey    string
	indexKey  string
}

// NewRedisSet creates a RedisSet namespaced under adapterName/endpointName.
func NewRedisSet(client *redis.Client, namespace string) *RedisSet {
	return &RedisSet{
		client:   client,
		setKey:   namespace + ":subs:z",
		indexKey: namespace + ":subs:idx",
	}
}

// Add inserts or refreshes key. The delimiter precondition is validated
// here: keys containing Delimiter would corrupt member decoding on getAll.
func (s *RedisSet) Add(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.Contains(key, Delimiter) {
		return fmt.Errorf("subscription: key %q contains reserved delimiter %q", key, Delimiter)
	}

	member := key + Delimiter + string(value)
	score := float64(time.Now().Add(ttl).UnixMilli())

	pipe := s.client.TxPipeline()
	prevMember, err := s.client.HGet(ctx, s.indexKey, key).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if prevMember != "" {
		pipe.ZRem(ctx, s.setKey, prevMember)
	}
	pipe.ZAdd(ctx, s.setKey, redis.Z{Score: score, Member: member})
	pipe.HSet(ctx, s.indexKey, key, member)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns (nil, nil) on a miss, including one already pruned by a
// concurrent getAll.
func (s *RedisSet) Get(ctx context.Context, key string) ([]byte, error) {
	member, err := s.client.HGet(ctx, s.indexKey, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	score, err := s.client.ZScore(ctx, s.setKey, member).Result()
	if err == redis.Nil {
		_ = s.client.HDel(ctx, s.indexKey, key).Err()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if int64(score) < time.Now().UnixMilli() {
		_ = s.removeMember(ctx, key, member)
		return nil, nil
	}

	_, value, ok := splitMember(member)
	if !ok {
		return nil, nil
	}
	return value, nil
}

// GetAll first removes members whose score is in the past, then returns
// the remaining members decoded. This is the sorted-set analog of the
// local backend's prune-on-read behavior.
func (s *RedisSet) GetAll(ctx context.Context) ([][]byte, error) {
	now := float64(time.Now().UnixMilli())
	if err := s.client.ZRemRangeByScore(ctx, s.setKey, "-inf", fmt.Sprintf("(%f", now)).Err(); err != nil {
		return nil, err
	}

	members, err := s.client.ZRange(ctx, s.setKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	values := make([][]byte, 0, len(members))
	for _, member := range members {
		if _, value, ok := splitMember(member); ok {
			values = append(values, value)
		}
	}
	return values, nil
}

func (s *RedisSet) removeMember(ctx context.Context, key, member string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.setKey, member)
	pipe.HDel(ctx, s.indexKey, key)
	_, err := pipe.Exec(ctx)
	return err
}

// Close is a no-op: RedisSet is constructed from a client it does not own
// (typically shared with the adapter's RedisCache); the owner closes it.
func (s *RedisSet) Close() error {
	return nil
}

func splitMember(member string) (key string, value []byte, ok bool) {
	idx := strings.Index(member, Delimiter)
	if idx < 0 {
		return "", nil, false
	}
	return member[:idx], []byte(member[idx+len(Delimiter):]), true
}
