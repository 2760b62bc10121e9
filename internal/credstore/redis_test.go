package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

func TestRedisStore(t *testing.T) {
	// integration test against a real server
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	prefix := fmt.Sprintf("thelewala-test:%d:", time.Now().UnixNano())
	store := NewRedisStore(client, prefix)
	exerciseStore(t, store)

	ctx := context.Background()
	_ = store.Set(ctx, KeyUserType, "vendor", AccessibleAlways)
	raw, err := client.Get(ctx, prefix+KeyUserType).Result()
	if err != nil || raw != "vendor" {
		t.Errorf("raw key = %q, %v; want the value under the prefix", raw, err)
	}
	_ = store.Remove(ctx, KeyUserType)
}

func TestRedisStore_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "thelewala:cred:")
	ctx := context.Background()

	_, err := store.Get(ctx, KeyUserAccessToken)
	if errors.Is(err, ErrNotFound) || !apperrors.HasCode(err, apperrors.CodeStorageFailure) {
		t.Errorf("Get err = %v, want a storage failure rather than not found", err)
	}
	if _, err := store.Exists(ctx, KeyUserAccessToken); !apperrors.HasCode(err, apperrors.CodeStorageFailure) {
		t.Errorf("Exists err = %v", err)
	}
	if err := store.Set(ctx, KeyUserAccessToken, "v", AccessibleWhenUnlocked); !apperrors.HasCode(err, apperrors.CodeStorageFailure) {
		t.Errorf("Set err = %v", err)
	}
	if err := store.Remove(ctx, KeyUserAccessToken); !apperrors.HasCode(err, apperrors.CodeStorageFailure) {
		t.Errorf("Remove err = %v", err)
	}
}
