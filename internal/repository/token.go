package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"loomgraph/internal/model"
	"loomgraph/internal/redis"
)

// Refresh tokens live in Redis so TTL handles expiry and revocation is
// a key delete. Three key families:
//
//	refresh:<hash>       live token, value is the user uid
//	refresh:used:<hash>  tombstone left by rotation, marks reuse
//	refresh:user:<uid>   set of the user's live hashes, for revoke-all
const (
	liveTokenPrefix  = "refresh:"
	usedTokenPrefix  = "refresh:used:"
	userTokensPrefix = "refresh:user:"
)

type tokenRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenRepository creates a Redis-backed refresh token store. ttl is
// the refresh token lifetime; tombstones share it, so reuse detection
// covers the whole window the token could have been valid in.
func NewTokenRepository(client *redis.Client, ttl time.Duration) TokenRepository {
	return &tokenRepository{client: client, ttl: ttl}
}

func (r *tokenRepository) Store(ctx context.Context, tokenHash, userUID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, liveTokenPrefix+tokenHash, userUID, ttl)
	pipe.SAdd(ctx, userTokensPrefix+userUID, tokenHash)
	pipe.Expire(ctx, userTokensPrefix+userUID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Consume atomically takes a live token out of circulation. A hit on
// the tombstone instead of the live key means the token was already
// rotated once, which is the reuse signal the auth service acts on.
func (r *tokenRepository) Consume(ctx context.Context, tokenHash string) (string, bool, error) {
	userUID, err := r.client.GetDel(ctx, liveTokenPrefix+tokenHash).Result()
	if err == nil {
		pipe := r.client.TxPipeline()
		pipe.SRem(ctx, userTokensPrefix+userUID, tokenHash)
		pipe.Set(ctx, usedTokenPrefix+tokenHash, userUID, r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return "", false, fmt.Errorf("retire refresh token: %w", err)
		}
		return userUID, false, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return "", false, fmt.Errorf("consume refresh token: %w", err)
	}

	userUID, err = r.client.Get(ctx, usedTokenPrefix+tokenHash).Result()
	if err == nil {
		return userUID, true, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return "", false, fmt.Errorf("check token tombstone: %w", err)
	}
	return "", false, model.ErrRefreshTokenNotFound
}

// Revoke drops a live token without leaving a tombstone; a logout is
// not a reuse signal.
func (r *tokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	userUID, err := r.client.GetDel(ctx, liveTokenPrefix+tokenHash).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if err := r.client.SRem(ctx, userTokensPrefix+userUID, tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser kills every live token the user has. Used on
// password change, deactivation and detected token reuse.
func (r *tokenRepository) RevokeAllForUser(ctx context.Context, userUID string) error {
	setKey := userTokensPrefix + userUID
	hashes, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("list user tokens: %w", err)
	}
	if len(hashes) == 0 {
		return r.client.Del(ctx, setKey).Err()
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, liveTokenPrefix+h)
	}
	keys = append(keys, setKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}
