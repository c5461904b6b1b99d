package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/ec-shop-core/internal/domain/cart"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu      sync.Mutex
	carts   map[string]*cart.Cart
	gets    atomic.Int32
	release chan struct{}
}

func newStubRepo() *stubRepo {
	return &stubRepo{carts: map[string]*cart.Cart{}}
}

func (s *stubRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	s.gets.Add(1)
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (s *stubRepo) Upsert(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.UserID] = c.Clone()
	return nil
}

func (s *stubRepo) Delete(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.carts[userID]
	delete(s.carts, userID)
	return ok, nil
}

func setupTestCache(t *testing.T) (*CartRepository, *stubRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newStubRepo()
	return NewCartRepository(repo, client, nil), repo, mr
}

func sampleCart(userID string) *cart.Cart {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	items := []cart.Item{{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("4.25")}}
	return &cart.Cart{
		UserID:     userID,
		Items:      items,
		TotalPrice: cart.Total(items),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGet_MissLoadsAndCaches(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u1")))

	got, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, int32(1), repo.gets.Load())

	assert.True(t, mr.Exists(cacheKey("u1")))
	ttl := mr.TTL(cacheKey("u1"))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 20*time.Minute, "TTL should be base + max jitter")
}

func TestGet_HitSkipsStore(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()

	data, err := json.Marshal(sampleCart("u2"))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey("u2"), string(data)))

	got, err := cache.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int32(0), repo.gets.Load())
	require.Len(t, got.Items, 1)
	assert.True(t, got.TotalPrice.Equal(decimal.RequireFromString("8.50")))
}

func TestGet_NotFoundIsNotCached(t *testing.T) {
	cache, _, mr := setupTestCache(t)

	_, err := cache.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, cart.ErrCartNotFound)
	assert.False(t, mr.Exists(cacheKey("nobody")))
}

func TestGet_CorruptEntryFallsBackToStore(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u3")))
	require.NoError(t, mr.Set(cacheKey("u3"), `{"user_id":`))

	got, err := cache.Get(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, "u3", got.UserID)
	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestGet_RedisDownFallsBackToStore(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u4")))
	mr.Close()

	got, err := cache.Get(ctx, "u4")
	require.NoError(t, err)
	assert.Equal(t, "u4", got.UserID)
}

func TestGet_ReturnsIndependentCopies(t *testing.T) {
	cache, repo, _ := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u5")))

	first, err := cache.Get(ctx, "u5")
	require.NoError(t, err)
	first.Items[0].Quantity = 99

	second, err := cache.Get(ctx, "u5")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Items[0].Quantity)
}

func TestGet_CollapsesConcurrentMisses(t *testing.T) {
	cache, repo, _ := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u6")))
	repo.release = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := cache.Get(ctx, "u6")
			assert.NoError(t, err)
			assert.Equal(t, "u6", c.UserID)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestUpsert_Invalidates(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()
	c := sampleCart("u7")
	require.NoError(t, repo.Upsert(ctx, c))

	_, err := cache.Get(ctx, "u7")
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKey("u7")))

	c.Items[0].Quantity = 5
	c.TotalPrice = cart.Total(c.Items)
	require.NoError(t, cache.Upsert(ctx, c))
	assert.False(t, mr.Exists(cacheKey("u7")))

	got, err := cache.Get(ctx, "u7")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Items[0].Quantity)
}

func TestDelete_Invalidates(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u8")))
	_, err := cache.Get(ctx, "u8")
	require.NoError(t, err)

	deleted, err := cache.Delete(ctx, "u8")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists(cacheKey("u8")))

	deleted, err = cache.Delete(ctx, "u8")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// blockingReadRepo loads the cart, signals loaded, then holds the result
// until release is closed.
type blockingReadRepo struct {
	*stubRepo
	loaded  chan struct{}
	release chan struct{}
}

func (b *blockingReadRepo) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := b.stubRepo.Get(ctx, userID)
	close(b.loaded)
	<-b.release
	return c, err
}

func TestGet_LoadRacingDeleteDoesNotRepopulate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	base := newStubRepo()
	require.NoError(t, base.Upsert(ctx, sampleCart("u1")))
	slow := &blockingReadRepo{stubRepo: base, loaded: make(chan struct{}), release: make(chan struct{})}
	cache := NewCartRepository(slow, client, nil)

	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, "u1")
		done <- err
	}()

	<-slow.loaded
	deleted, err := cache.Delete(ctx, "u1")
	require.NoError(t, err)
	require.True(t, deleted)
	close(slow.release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists(cacheKey("u1")), "stale cart must not be cached")

	_, err = NewCartRepository(base, client, nil).Get(ctx, "u1")
	assert.ErrorIs(t, err, cart.ErrCartNotFound)
}

func TestGet_LoadRacingUpsertKeepsNewCart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	base := newStubRepo()
	require.NoError(t, base.Upsert(ctx, sampleCart("u2")))
	slow := &blockingReadRepo{stubRepo: base, loaded: make(chan struct{}), release: make(chan struct{})}
	cache := NewCartRepository(slow, client, nil)

	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, "u2")
		done <- err
	}()

	<-slow.loaded
	updated := sampleCart("u2")
	updated.Items[0].Quantity = 7
	updated.TotalPrice = cart.Total(updated.Items)
	require.NoError(t, cache.Upsert(ctx, updated))
	close(slow.release)
	require.NoError(t, <-done)

	got, err := NewCartRepository(base, client, nil).Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Items[0].Quantity)
}

func TestInvalidate_BumpsGeneration(t *testing.T) {
	cache, repo, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, sampleCart("u9")))

	_, err := cache.Delete(ctx, "u9")
	require.NoError(t, err)
	_, err = cache.Delete(ctx, "u9")
	require.NoError(t, err)

	gen, err := mr.Get(generationKey("u9"))
	require.NoError(t, err)
	assert.Equal(t, "2", gen)
	assert.True(t, mr.TTL(generationKey("u9")) > 0)
}

func TestSet_StaleGenerationIsRejected(t *testing.T) {
	cache, _, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(generationKey("u10"), "3"))

	err := cache.set(ctx, sampleCart("u10"), 2)
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.False(t, mr.Exists(cacheKey("u10")))

	require.NoError(t, cache.set(ctx, sampleCart("u10"), 3))
	assert.True(t, mr.Exists(cacheKey("u10")))
}
