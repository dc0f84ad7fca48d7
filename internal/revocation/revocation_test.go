package revocation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"feedtrack/internal/repository"
)

func TestStoreRevoker(t *testing.T) {
	ctx := context.Background()
	revoker := FromStore(repository.NewMemory())

	if err := revoker.Revoke(ctx, "", time.Now().Add(time.Hour)); err == nil {
		t.Fatalf("expected error for empty jti")
	}
	if err := revoker.Revoke(ctx, "abc", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := revoker.IsRevoked(ctx, "abc")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v (%v)", revoked, err)
	}
	revoked, _ = revoker.IsRevoked(ctx, "other")
	if revoked {
		t.Fatalf("expected unknown jti not revoked")
	}
}

func TestStoreRevokerIgnoresExpiredEntries(t *testing.T) {
	ctx := context.Background()
	revoker := FromStore(repository.NewMemory())
	if err := revoker.Revoke(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := revoker.IsRevoked(ctx, "old"); revoked {
		t.Fatalf("expected expired revocation to be ignored")
	}
}

func TestRedisRevoker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	revoker := NewRedis(client)
	jti := uuid.NewString()
	if revoked, _ := revoker.IsRevoked(ctx, jti); revoked {
		t.Fatalf("expected fresh jti not revoked")
	}
	if err := revoker.Revoke(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := revoker.IsRevoked(ctx, jti)
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v (%v)", revoked, err)
	}
	ttl, err := client.TTL(ctx, revoker.key(jti)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within a minute, got %v (%v)", ttl, err)
	}
}
