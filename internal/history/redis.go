package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each cluster's history in a capped list. Unlike Store it reports
// errors, which FallbackStore uses to decide when to give up on Redis.
type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

func NewRedisStore(client *redis.Client, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

// DialRedis parses url and checks the server answers PING within timeout.
func DialRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Record(ctx context.Context, clusterID int64, count int) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	key := Key(clusterID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, count)
		pipe.LTrim(ctx, key, -MaxPoints, -1)
		pipe.Expire(ctx, key, TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record history for %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Window(ctx context.Context, clusterID int64) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	key := Key(clusterID)
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", key, err)
	}

	points := make([]int, 0, len(raw))
	for _, r := range raw {
		v, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("corrupt history entry %q for %s: %w", r, key, err)
		}
		points = append(points, v)
	}
	return trim(points), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
