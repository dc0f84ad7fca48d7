// Package revocation tracks access tokens that were logged out before they
// expired. Entries are keyed by the token's jti and live until its exp.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Store is the subset of the repository the table-backed revoker needs.
type Store interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
}

var errMissingJTI = errors.New("missing_jti")

type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "feedtrack:revoked:"}
}

func (r *Redis) key(jti string) string {
	return r.prefix + jti
}

func (r *Redis) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return errMissingJTI
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(jti), "1", ttl).Err()
}

func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := r.client.Get(ctx, r.key(jti)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type table struct {
	store Store
	now   func() time.Time
}

// FromStore keeps revocations in the relational store. Expired rows are
// removed by the purge job.
func FromStore(store Store) Revoker {
	return &table{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (t *table) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return errMissingJTI
	}
	return t.store.RevokeToken(ctx, jti, until.UTC())
}

func (t *table) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	return t.store.IsTokenRevoked(ctx, jti, t.now())
}
