package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a stored session survives without being
// refreshed. The provider decides whether the refresh token is still good.
const DefaultTTL = 30 * 24 * time.Hour

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under key "<prefix><deviceID>".
type RedisRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRepository creates a Redis-based session repository. An empty
// prefix defaults to "session:", a zero ttl to DefaultTTL.
func NewRedisRepository(client *redis.Client, prefix string, ttl time.Duration) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRepository) key(deviceID string) string {
	return r.prefix + deviceID
}

func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(s.DeviceID), b, r.ttl).Err()
}

func (r *RedisRepository) Get(ctx context.Context, deviceID string) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisRepository) Delete(ctx context.Context, deviceID string) error {
	return r.client.Del(ctx, r.key(deviceID)).Err()
}
