// Package dedup suppresses duplicate alerts across tracker instances with a
// short-lived Redis guard key per product and alert kind.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "hwtracker:alert:"

// AlertGuard records recently sent alerts. A nil guard never suppresses.
type AlertGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAlertGuard creates a guard whose entries expire after ttl.
func NewAlertGuard(rdb *redis.Client, ttl time.Duration) *AlertGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AlertGuard{
		rdb: rdb,
		ttl: ttl,
	}
}

// IsDuplicate atomically claims the (productID, kind) slot and reports
// whether another instance claimed it first.
func (g *AlertGuard) IsDuplicate(ctx context.Context, productID, kind string) (bool, error) {
	if g == nil || g.rdb == nil || productID == "" {
		return false, nil
	}
	key := keyPrefix + productID + ":" + kind
	ok, err := g.rdb.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("alert guard setnx: %w", err)
	}
	return !ok, nil
}

// Release drops the guard entry, letting the alert fire again. Used when a
// claimed delivery ultimately failed.
func (g *AlertGuard) Release(ctx context.Context, productID, kind string) error {
	if g == nil || g.rdb == nil || productID == "" {
		return nil
	}
	key := keyPrefix + productID + ":" + kind
	if err := g.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("alert guard del: %w", err)
	}
	return nil
}
