package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yzh317179958/customer-service-sub000/internal/sla"
)

// AlertDedupRepository remembers which alerts were recently delivered.
type AlertDedupRepository interface {
	// Claim returns true when the alert has not been delivered within ttl.
	Claim(ctx context.Context, alert sla.Alert, ttl time.Duration) (bool, error)
	// Release forgets a claim whose delivery failed.
	Release(ctx context.Context, alert sla.Alert) error
}

type alertDedupRepository struct {
	client *redis.Client
}

// NewAlertDedupRepository creates a Redis-backed dedup store.
func NewAlertDedupRepository(client *redis.Client) AlertDedupRepository {
	return &alertDedupRepository{client: client}
}

func (r *alertDedupRepository) Claim(ctx context.Context, alert sla.Alert, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, AlertDedupKey(alert), alert.CreatedAt.Unix(), ttl).Result()
}

func (r *alertDedupRepository) Release(ctx context.Context, alert sla.Alert) error {
	return r.client.Del(ctx, AlertDedupKey(alert)).Err()
}

// AlertDedupKey identifies an alert by ticket, clock and level so an
// escalation from warning to urgent is delivered again.
func AlertDedupKey(alert sla.Alert) string {
	return "sla:alert:" + alert.TicketID + ":" + string(alert.Type) + ":" + string(alert.Status)
}
