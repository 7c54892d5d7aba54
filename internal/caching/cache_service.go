package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"facilityops/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "facilityops"

// CacheService is the Redis-backed cache. A miss is reported as (nil, nil);
// callers treat any error as a miss and fall through to the database.
type CacheService interface {
	GetWorkOrder(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	SetWorkOrder(ctx context.Context, wo *models.WorkOrder, ttl time.Duration) error
	DeleteWorkOrder(ctx context.Context, id uuid.UUID) error

	GetStatusCounts(ctx context.Context) (map[models.WorkOrderStatus]int, error)
	SetStatusCounts(ctx context.Context, counts map[models.WorkOrderStatus]int, ttl time.Duration) error
	InvalidateStatusCounts(ctx context.Context) error

	// IsRateLimited counts one attempt against key and reports whether the
	// count is now above limit within window.
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	ResetRateLimit(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisClient accepts either host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

func NewRedisCacheService(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func workOrderKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:workorder:%s", keyPrefix, id.String())
}

func statusCountsKey() string {
	return keyPrefix + ":stats:status"
}

func rateLimitKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", keyPrefix, key)
}

func (r *redisCacheService) GetWorkOrder(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	data, err := r.client.Get(ctx, workOrderKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var wo models.WorkOrder
	if err := json.Unmarshal(data, &wo); err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *redisCacheService) SetWorkOrder(ctx context.Context, wo *models.WorkOrder, ttl time.Duration) error {
	data, err := json.Marshal(wo)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, workOrderKey(wo.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteWorkOrder(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, workOrderKey(id)).Err()
}

func (r *redisCacheService) GetStatusCounts(ctx context.Context) (map[models.WorkOrderStatus]int, error) {
	data, err := r.client.Get(ctx, statusCountsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var counts map[models.WorkOrderStatus]int
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *redisCacheService) SetStatusCounts(ctx context.Context, counts map[models.WorkOrderStatus]int, ttl time.Duration) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statusCountsKey(), data, ttl).Err()
}

func (r *redisCacheService) InvalidateStatusCounts(ctx context.Context) error {
	return r.client.Del(ctx, statusCountsKey()).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := rateLimitKey(key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return false, err
	}

	// first hit opens the window
	if count == 1 {
		if err := r.client.Expire(ctx, cacheKey, window).Err(); err != nil {
			return false, err
		}
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) ResetRateLimit(ctx context.Context, key string) error {
	return r.client.Del(ctx, rateLimitKey(key)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
