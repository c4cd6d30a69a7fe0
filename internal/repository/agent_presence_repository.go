package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yzh317179958/customer-service-sub000/internal/domain"
)

// ErrCapacityExhausted is returned when an agent has no free session slot.
var ErrCapacityExhausted = errors.New("agent capacity exhausted")

// Presence is the live, frequently changing part of an agent.
type Presence struct {
	Status          domain.AgentStatus
	ManualSessions  int
	PendingSessions int
	LastActiveAt    time.Time
}

// AgentPresenceRepository tracks agent status and session counters in Redis.
type AgentPresenceRepository interface {
	Get(ctx context.Context, ids []string) (map[string]Presence, error)
	SetStatus(ctx context.Context, id string, status domain.AgentStatus, at time.Time) error
	// Reserve takes one pending slot for the agent if the total load stays
	// within maxSessions.
	Reserve(ctx context.Context, id string, maxSessions int, at time.Time) (Presence, error)
	Release(ctx context.Context, id string) error
}

type agentPresenceRepository struct {
	client *redis.Client
}

// NewAgentPresenceRepository creates a presence store backed by Redis hashes.
func NewAgentPresenceRepository(client *redis.Client) AgentPresenceRepository {
	return &agentPresenceRepository{client: client}
}

const (
	fieldStatus     = "status"
	fieldManual     = "manual"
	fieldPending    = "pending"
	fieldLastActive = "last_active_at"
)

func presenceKey(id string) string {
	return "agent:presence:" + id
}

func (r *agentPresenceRepository) Get(ctx context.Context, ids []string) (map[string]Presence, error) {
	result := make(map[string]Presence, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, presenceKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		data, err := cmds[i].Result()
		if err != nil {
			return nil, err
		}
		result[id] = decodePresence(data)
	}
	return result, nil
}

func (r *agentPresenceRepository) SetStatus(ctx context.Context, id string, status domain.AgentStatus, at time.Time) error {
	return r.client.HSet(ctx, presenceKey(id),
		fieldStatus, string(status),
		fieldLastActive, at.Unix(),
	).Err()
}

func (r *agentPresenceRepository) Reserve(ctx context.Context, id string, maxSessions int, at time.Time) (Presence, error) {
	key := presenceKey(id)

	pending, err := r.client.HIncrBy(ctx, key, fieldPending, 1).Result()
	if err != nil {
		return Presence{}, err
	}
	manual, err := r.client.HGet(ctx, key, fieldManual).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		_ = r.client.HIncrBy(ctx, key, fieldPending, -1).Err()
		return Presence{}, err
	}

	if maxSessions > 0 && manual+int(pending) > maxSessions {
		if rollbackErr := r.client.HIncrBy(ctx, key, fieldPending, -1).Err(); rollbackErr != nil {
			return Presence{}, errors.Join(ErrCapacityExhausted, rollbackErr)
		}
		return Presence{}, ErrCapacityExhausted
	}

	if err := r.client.HSet(ctx, key, fieldLastActive, at.Unix()).Err(); err != nil {
		return Presence{}, err
	}
	data, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Presence{}, err
	}
	return decodePresence(data), nil
}

func (r *agentPresenceRepository) Release(ctx context.Context, id string) error {
	key := presenceKey(id)
	pending, err := r.client.HIncrBy(ctx, key, fieldPending, -1).Result()
	if err != nil {
		return err
	}
	if pending < 0 {
		return r.client.HSet(ctx, key, fieldPending, 0).Err()
	}
	return nil
}

func decodePresence(data map[string]string) Presence {
	presence := Presence{Status: domain.AgentStatusOffline}
	if len(data) == 0 {
		return presence
	}
	if raw, ok := data[fieldStatus]; ok && raw != "" {
		presence.Status = domain.AgentStatus(raw)
	}
	if raw, ok := data[fieldManual]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			presence.ManualSessions = n
		}
	}
	if raw, ok := data[fieldPending]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			presence.PendingSessions = n
		}
	}
	if raw, ok := data[fieldLastActive]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			presence.LastActiveAt = time.Unix(unix, 0).UTC()
		}
	}
	return presence
}
