package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyWindowState is the key under which window state is shared.
const RedisKeyWindowState = "wb:rate_window:state"

// State is the persistable snapshot of a rate window. The quota is
// account-independent and process-wide, so sharing this state lets
// several exporter processes (or rapid consecutive runs) honor the same
// 10-per-6-seconds budget.
type State struct {
	// WindowStart is when the current quota window opened.
	WindowStart time.Time `json:"window_start"`

	// Count is the number of requests issued in the current window.
	Count int `json:"count"`

	// LastRequest is when the most recent request was issued. Used to
	// enforce minimum spacing across process boundaries.
	LastRequest time.Time `json:"last_request"`
}

// Store persists rate window state across processes.
type Store interface {
	// Load returns the stored state, or (nil, nil) when none exists.
	Load(ctx context.Context) (*State, error)

	// Save stores the state.
	Save(ctx context.Context, state *State) error
}

// RedisStore shares window state through Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed state store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Load retrieves the shared window state.
func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := s.redis.Get(ctx, RedisKeyWindowState).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse window state: %w", err)
	}

	return &state, nil
}

// Save stores the window state. The entry expires after one window
// duration since older state carries no remaining quota information.
func (s *RedisStore) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal window state: %w", err)
	}

	if err := s.redis.Set(ctx, RedisKeyWindowState, data, WindowDuration).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}
