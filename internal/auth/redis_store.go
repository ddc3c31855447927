package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps revoked session ids until their tokens would have
// expired anyway.
type redisStore struct {
	client *redis.Client
}

func newRedisStore(client *redis.Client) *redisStore {
	return &redisStore{client: client}
}

func (r *redisStore) revoke(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKey(tokenID), userID, ttl).Err()
}

func (r *redisStore) isRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisStore) ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("session:revoked:%s", tokenID)
}
