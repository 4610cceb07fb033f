// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/rondo/internal/platform/apperr"
	"github.com/taibuivan/rondo/internal/platform/constants"
	"github.com/taibuivan/rondo/internal/platform/sec"
)

// sessionTokenBytes is the entropy of a freshly minted session token.
const sessionTokenBytes = 32

// RedisSessionTokenStore implements SessionTokenStore using Redis.
//
// Tokens are stored under their SHA-256 digest with the configured TTL, so
// expiry is enforced by Redis itself and a leaked keyspace never yields a
// usable token.
type RedisSessionTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionTokenStore creates a new Redis-backed SessionTokenStore.
func NewRedisSessionTokenStore(client *redis.Client, ttl time.Duration) *RedisSessionTokenStore {
	return &RedisSessionTokenStore{client: client, ttl: ttl}
}

/*
Issue mints a fresh opaque token bound to the username.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - string: The plaintext token to hand back to the client
  - error: Entropy or storage failures
*/
func (store *RedisSessionTokenStore) Issue(context context.Context, username string) (string, error) {

	// Generate the plaintext token
	token, err := sec.GenerateSecureToken(sessionTokenBytes)
	if err != nil {
		return "", err
	}

	// Store only the digest, keyed with the shared prefix
	key := constants.RedisPrefixSessionToken + sec.HashToken(token)

	if err := store.client.Set(context, key, username, store.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis_session_token_set_failed: %w", err)
	}

	return token, nil
}

/*
Verify resolves a plaintext token back to its username.

Description: Returns apperr.NotFound when the token is unknown or has
expired out of the keyspace.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - string: The bound username
  - error: apperr.NotFound or connectivity errors
*/
func (store *RedisSessionTokenStore) Verify(context context.Context, token string) (string, error) {
	key := constants.RedisPrefixSessionToken + sec.HashToken(token)

	username, err := store.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Session token")
		}
		return "", fmt.Errorf("redis_session_token_get_failed: %w", err)
	}

	return username, nil
}
