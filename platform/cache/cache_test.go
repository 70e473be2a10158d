package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type stats struct {
	Prospects int `json:"prospects"`
}

func newTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSetGetJSON(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.GetJSON(ctx, "reports:all", &stats{}); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := c.SetJSON(ctx, "reports:all", stats{Prospects: 12}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got stats
	if err := c.GetJSON(ctx, "reports:all", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Prospects != 12 {
		t.Fatalf("expected 12, got %d", got.Prospects)
	}

	mr.FastForward(2 * time.Minute)
	if err := c.GetJSON(ctx, "reports:all", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestDeletePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"reports:dashboard:a", "reports:dashboard:b", "other:x"} {
		if err := c.SetJSON(ctx, key, 1, time.Minute); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := c.DeletePrefix(ctx, "reports:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if mr.Exists("crm:reports:dashboard:a") || mr.Exists("crm:reports:dashboard:b") {
		t.Fatal("expected report keys to be removed")
	}
	if !mr.Exists("crm:other:x") {
		t.Fatal("unrelated key should survive")
	}
}
