package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	registryKey    = "forecast-sync:subscriptions"
	lockKey        = "forecast-sync:subscriptions:lock"
	defaultLockTTL = time.Minute
)

// MemoryRegistry keeps the id map in process.
type MemoryRegistry struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMemoryRegistry returns an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ids: make(map[string]string)}
}

// Save replaces the held map with a copy of ids.
func (r *MemoryRegistry) Save(_ context.Context, ids map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]string, len(ids))
	for k, v := range ids {
		r.ids[k] = v
	}
	return nil
}

// Load returns a copy of the held map.
func (r *MemoryRegistry) Load(context.Context) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.ids))
	for k, v := range r.ids {
		out[k] = v
	}
	return out, nil
}

// RedisRegistry stores the id map as a JSON document so every instance can
// report which subscriptions the last reconciliation created.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry returns a registry stored under a fixed key.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// Save replaces the stored map.
func (r *RedisRegistry) Save(ctx context.Context, ids map[string]string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, registryKey, data, 0).Err()
}

// Load returns the stored map, empty when nothing was saved yet.
func (r *RedisRegistry) Load(ctx context.Context) (map[string]string, error) {
	result, err := r.client.Get(ctx, registryKey).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string)
	if err := json.Unmarshal([]byte(result), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// unlock only deletes the key when we still own it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX lock with a TTL so a crashed holder cannot block
// reconciliation forever.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

// NewRedisLocker returns a locker with a per-instance token; ttl <= 0 uses one minute.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, token: uuid.NewString()}
}

// TryLock reports whether this instance acquired the lock.
func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, lockKey, l.token, l.ttl).Result()
}

// Unlock releases the lock if this instance still holds it.
func (l *RedisLocker) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{lockKey}, l.token).Err()
}

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
