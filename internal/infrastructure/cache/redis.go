// Package cache fronts the cart repository with redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/ec-shop-core/internal/domain/cart"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrCacheMiss  = errors.New("cache miss")
	ErrStaleWrite = errors.New("cart invalidated during load")
)

const (
	defaultTTL = 15 * time.Minute
	// generationTTL outlives any cached copy and any in-flight load.
	generationTTL = 24 * time.Hour
)

// CartRepository is a read-through cart.Repository. Reads of the same user
// are collapsed while a store lookup is in flight; writes go to the store
// first and then drop the cached copy. A per-user generation counter keeps a
// load that raced with a write from repopulating the cache. Cache failures
// never fail the call.
type CartRepository struct {
	next    cart.Repository
	client  *redis.Client
	baseTTL time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

func NewCartRepository(next cart.Repository, client *redis.Client, logger *zap.Logger) *CartRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartRepository{
		next:    next,
		client:  client,
		baseTTL: defaultTTL,
		logger:  logger,
	}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := r.cached(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("cart cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		// The generation is read before the store so an invalidation that
		// lands while the load is in flight keeps the loaded copy out of
		// the cache.
		gen, genErr := r.generation(ctx, userID)

		c, err := r.next.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			r.logger.Warn("cart cache generation read failed", zap.String("user_id", userID), zap.Error(genErr))
			return c, nil
		}
		if err := r.set(ctx, c, gen); err != nil && !errors.Is(err, ErrStaleWrite) {
			r.logger.Warn("cart cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers mutate the returned cart.
	return v.(*cart.Cart).Clone(), nil
}

func (r *CartRepository) Upsert(ctx context.Context, c *cart.Cart) error {
	if err := r.next.Upsert(ctx, c); err != nil {
		return err
	}
	r.invalidate(ctx, c.UserID)
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, userID string) (bool, error) {
	deleted, err := r.next.Delete(ctx, userID)
	if err != nil {
		return false, err
	}
	r.invalidate(ctx, userID)
	return deleted, nil
}

func (r *CartRepository) cached(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return &c, nil
}

// generation returns the invalidation counter of a user's cart. A missing
// counter is generation zero.
func (r *CartRepository) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// set caches c only while the generation still equals gen. The generation
// key is watched so an invalidation between the check and the write aborts
// the transaction.
func (r *CartRepository) set(ctx context.Context, c *cart.Cart, gen int64) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	genKey := generationKey(c.UserID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			current, err = 0, nil
		}
		if err != nil {
			return err
		}
		if current != gen {
			return ErrStaleWrite
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(c.UserID), data, r.baseTTL+jitter)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleWrite
	}
	if err != nil && !errors.Is(err, ErrStaleWrite) {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return err
}

// invalidate bumps the generation and drops the cached copy in one
// transaction.
func (r *CartRepository) invalidate(ctx context.Context, userID string) {
	genKey := generationKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		r.logger.Warn("cart cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func generationKey(userID string) string {
	return fmt.Sprintf("cart:gen:%s", userID)
}
