package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Claim sets key only if it is absent. Returns false when someone else holds it.
func Claim(ctx context.Context, rdb *redis.Client, key, value string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, value, ttl).Result()
}

// Lookup returns the value at key, or "" with ok=false when missing.
func Lookup(ctx context.Context, rdb *redis.Client, key string) (string, bool, error) {
	v, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

type CachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func CacheStatus(ctx context.Context, rdb *redis.Client, orderID, status string, updatedAt time.Time) error {
	b, err := json.Marshal(CachedStatus{Status: status, UpdatedAt: updatedAt})
	if err != nil {
		return err
	}
	return rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

func GetCachedStatus(ctx context.Context, rdb *redis.Client, orderID string) (CachedStatus, bool, error) {
	v, ok, err := Lookup(ctx, rdb, fmt.Sprintf(KeyOrderStatus, orderID))
	if err != nil || !ok {
		return CachedStatus{}, false, err
	}
	var cs CachedStatus
	if err := json.Unmarshal([]byte(v), &cs); err != nil {
		return CachedStatus{}, false, err
	}
	return cs, true, nil
}
