package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/camagru/camagru/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if err := cache.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewCacheUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	host, port := mr.Host(), mr.Server().Addr().Port
	mr.Close()

	if _, err := NewCache(host, port, "", 0); err == nil {
		t.Error("Expected error connecting to a stopped server")
	}
}

func TestCache_StickerOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	got, err := cache.GetSticker(ctx, 1)
	if err != nil {
		t.Fatalf("GetSticker on miss failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil on cache miss")
	}

	sticker := &models.Sticker{ID: 1, Name: "Crown", FilePath: "/img/stickers/crown.png"}
	if err := cache.SetSticker(ctx, sticker, time.Minute); err != nil {
		t.Fatalf("SetSticker failed: %v", err)
	}

	got, err = cache.GetSticker(ctx, 1)
	if err != nil {
		t.Fatalf("GetSticker failed: %v", err)
	}
	if got == nil || got.FilePath != sticker.FilePath {
		t.Errorf("Expected %+v, got %+v", sticker, got)
	}

	mr.FastForward(2 * time.Minute)

	got, err = cache.GetSticker(ctx, 1)
	if err != nil {
		t.Fatalf("GetSticker after expiry failed: %v", err)
	}
	if got != nil {
		t.Error("Expected sticker to expire")
	}
}

func TestCache_StickerList(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	list, err := cache.GetStickers(ctx)
	if err != nil || list != nil {
		t.Fatalf("Expected miss, got %v, %v", list, err)
	}

	stickers := []*models.Sticker{
		{ID: 1, Name: "Crown", FilePath: "/img/stickers/crown.png"},
		{ID: 2, Name: "Heart", FilePath: "/img/stickers/heart.png"},
	}
	if err := cache.SetStickers(ctx, stickers, time.Minute); err != nil {
		t.Fatalf("SetStickers failed: %v", err)
	}

	list, err = cache.GetStickers(ctx)
	if err != nil {
		t.Fatalf("GetStickers failed: %v", err)
	}
	if len(list) != 2 || list[1].Name != "Heart" {
		t.Errorf("Unexpected sticker list %+v", list)
	}
}

func TestCache_CorruptValue(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	if err := mr.Set("sticker:9", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.GetSticker(context.Background(), 9); err == nil {
		t.Error("Expected unmarshal error")
	}
}

func TestCache_TokenRevocation(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	revoked, err := cache.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("Expected unrevoked token, got %v, %v", revoked, err)
	}

	if err := cache.RevokeToken(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	revoked, err = cache.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("Expected revoked token, got %v, %v", revoked, err)
	}

	mr.FastForward(2 * time.Hour)
	revoked, _ = cache.IsRevoked(ctx, "jti-1")
	if revoked {
		t.Error("Expected revocation to expire with the token")
	}

	if err := cache.RevokeToken(ctx, "jti-2", 0); err != nil {
		t.Errorf("Revoking an already expired token should be a no-op, got %v", err)
	}
	if mr.Exists("revoked:jti-2") {
		t.Error("Expected no key for an expired token")
	}
}

func TestCache_RateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := cache.CheckRateLimit(ctx, "reset:a@example.com", 3, time.Hour)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}
		if !ok {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	ok, err := cache.CheckRateLimit(ctx, "reset:a@example.com", 3, time.Hour)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if ok {
		t.Error("Fourth request should be limited")
	}

	mr.FastForward(time.Hour + time.Second)
	ok, _ = cache.CheckRateLimit(ctx, "reset:a@example.com", 3, time.Hour)
	if !ok {
		t.Error("Window should have reset")
	}
}

func TestCache_RateLimitAlwaysExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	if _, err := cache.CheckRateLimit(ctx, "saves:5", 60, time.Hour); err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if ttl := mr.TTL("ratelimit:saves:5"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("Expected a TTL within the window, got %v", ttl)
	}

	// A counter left behind without a TTL gets one on the next request
	mr.Set("ratelimit:saves:6", "60")
	ok, err := cache.CheckRateLimit(ctx, "saves:6", 60, time.Hour)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if ok {
		t.Error("Counter over the limit should be limited")
	}
	if ttl := mr.TTL("ratelimit:saves:6"); ttl <= 0 {
		t.Errorf("Expected the stale counter to expire, got TTL %v", ttl)
	}

	// Later requests keep the window of the first one
	mr.FastForward(30 * time.Minute)
	if _, err := cache.CheckRateLimit(ctx, "saves:5", 60, time.Hour); err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if ttl := mr.TTL("ratelimit:saves:5"); ttl > 31*time.Minute {
		t.Errorf("Window should not be extended, got TTL %v", ttl)
	}
}
