package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RunStore persists one run state per session and serializes access to it.
type RunStore interface {
	Get(ctx context.Context, userID string) (*RunState, error)
	Put(ctx context.Context, userID string, state RunState) error
	Delete(ctx context.Context, userID string) error
	// Lock acquires the per-session lock and returns its release function, or
	// ErrRunBusy when another request holds it.
	Lock(ctx context.Context, userID string) (func() error, error)
}

const (
	defaultStateTTL = 30 * time.Minute
	defaultLockTTL  = 10 * time.Second
)

// RedisRunStore keeps run state in Redis with a TTL and guards each session
// with a SetNX lock released via a compare-and-delete script, so two
// concurrent Submits cannot both read and record against the same offset.
type RedisRunStore struct {
	redis    *redis.Client
	logger   zerolog.Logger
	stateTTL time.Duration
	lockTTL  time.Duration
}

var _ RunStore = (*RedisRunStore)(nil)

func NewRedisRunStore(client *redis.Client, logger zerolog.Logger, stateTTL, lockTTL time.Duration) *RedisRunStore {
	if stateTTL <= 0 {
		stateTTL = defaultStateTTL
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &RedisRunStore{
		redis:    client,
		logger:   logger.With().Str("component", "run_store").Logger(),
		stateTTL: stateTTL,
		lockTTL:  lockTTL,
	}
}

func stateKey(userID string) string {
	return fmt.Sprintf("quizrun:state:%s", userID)
}

func lockKey(userID string) string {
	return fmt.Sprintf("quizrun:lock:%s", userID)
}

// Get returns the session's run state, or nil when no run is in progress.
func (s *RedisRunStore) Get(ctx context.Context, userID string) (*RunState, error) {
	data, err := s.redis.Get(ctx, stateKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run state: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal run state: %w", err)
	}
	return &state, nil
}

// Put writes the whole (offset, score) pair as one value and refreshes the TTL.
func (s *RedisRunStore) Put(ctx context.Context, userID string, state RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(userID), data, s.stateTTL).Err(); err != nil {
		return fmt.Errorf("put run state: %w", err)
	}
	return nil
}

// Delete tears down the session's run state.
func (s *RedisRunStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete run state: %w", err)
	}
	return nil
}

// Lock acquires the session lock. The TTL bounds how long a crashed request
// can block its session.
func (s *RedisRunStore) Lock(ctx context.Context, userID string) (func() error, error) {
	key := lockKey(userID)
	lockValue := uuid.NewString()

	acquired, err := s.redis.SetNX(ctx, key, lockValue, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunBusy
	}

	unlock := func() error {
		// Delete only our own lock, never a successor's.
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		return s.redis.Eval(ctx, script, []string{key}, lockValue).Err()
	}

	return unlock, nil
}
