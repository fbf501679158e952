package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locks serializes mutating scans per registration across scan points. Two
// concurrent cancels for the same registration must not both pass the
// cancellation gate; distinct registrations never contend.
type Locks struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewLocks(client *redis.Client) *Locks {
	return &Locks{
		Client: client,
		Logger: log.Default(),
	}
}

// getLockTTL returns the lock TTL from environment variables or the default value
func (r *Locks) getLockTTL() time.Duration {
	defaultTTL := 10 * time.Second

	ttlStr := os.Getenv("REGISTRATION_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid REGISTRATION_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 10 seconds")
		return defaultTTL
	}

	return time.Duration(ttlSec) * time.Second
}

func lockKey(registrationID int64) string {
	return fmt.Sprintf("registration_lock:%d", registrationID)
}

// LockRegistration acquires the per-registration mutation lock, retrying
// briefly so a scan arriving just behind another waits its turn instead of
// failing. Returns false when the lock could not be acquired in time.
func (r *Locks) LockRegistration(ctx context.Context, registrationID int64, owner string) (bool, error) {
	key := lockKey(registrationID)
	ttl := r.getLockTTL()

	deadline := time.Now().Add(2 * time.Second)
	for {
		ok, err := r.Client.SetNX(ctx, key, owner, ttl).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// UnlockRegistration releases the lock if still held by owner.
func (r *Locks) UnlockRegistration(ctx context.Context, registrationID int64, owner string) error {
	key := lockKey(registrationID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // expired or already released
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
