package play

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrSessionActive is returned when a player already plays somewhere else.
var ErrSessionActive = errors.New("player already has an active session")

// Registry guarantees at most one hosted session per player. A claim returns
// a token that must be presented to refresh or release it.
type Registry interface {
	Claim(ctx context.Context, playerID uuid.UUID, gameID string) (string, error)
	Touch(ctx context.Context, playerID uuid.UUID, token string) error
	Release(ctx context.Context, playerID uuid.UUID, token string) error
}

// RedisRegistry shares claims between instances through SET NX with a TTL.
// A crashed instance's claims lapse after the TTL.
type RedisRegistry struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// releaseClaim only deletes the key when it still holds our token.
var releaseClaim = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// touchClaim only extends the key when it still holds our token.
var touchClaim = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// NewRedisRegistry creates a registry backed by Redis.
func NewRedisRegistry(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisRegistry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRegistry{
		redis:  client,
		prefix: "play:session",
		ttl:    ttl,
		logger: logger.With().Str("component", "session_registry").Logger(),
	}
}

func (r *RedisRegistry) key(playerID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", r.prefix, playerID.String())
}

// Claim reserves the player's session slot.
func (r *RedisRegistry) Claim(ctx context.Context, playerID uuid.UUID, gameID string) (string, error) {
	token := gameID + ":" + uuid.New().String()

	acquired, err := r.redis.SetNX(ctx, r.key(playerID), token, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("claim session: %w", err)
	}
	if !acquired {
		return "", ErrSessionActive
	}
	return token, nil
}

// Touch extends a claim. A lost claim is reported as ErrSessionActive.
func (r *RedisRegistry) Touch(ctx context.Context, playerID uuid.UUID, token string) error {
	n, err := touchClaim.Run(ctx, r.redis, []string{r.key(playerID)}, token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("touch session claim: %w", err)
	}
	if n == 0 {
		return ErrSessionActive
	}
	return nil
}

// Release frees the slot if token still owns it.
func (r *RedisRegistry) Release(ctx context.Context, playerID uuid.UUID, token string) error {
	if err := releaseClaim.Run(ctx, r.redis, []string{r.key(playerID)}, token).Err(); err != nil {
		return fmt.Errorf("release session claim: %w", err)
	}
	return nil
}

// LocalRegistry keeps claims in process memory for single-instance runs.
type LocalRegistry struct {
	mu     sync.Mutex
	claims map[uuid.UUID]string
}

// NewLocalRegistry creates an empty in-process registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{claims: make(map[uuid.UUID]string)}
}

func (r *LocalRegistry) Claim(_ context.Context, playerID uuid.UUID, gameID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.claims[playerID]; held {
		return "", ErrSessionActive
	}
	token := gameID + ":" + uuid.New().String()
	r.claims[playerID] = token
	return token, nil
}

func (r *LocalRegistry) Touch(_ context.Context, playerID uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claims[playerID] != token {
		return ErrSessionActive
	}
	return nil
}

func (r *LocalRegistry) Release(_ context.Context, playerID uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claims[playerID] == token {
		delete(r.claims, playerID)
	}
	return nil
}
