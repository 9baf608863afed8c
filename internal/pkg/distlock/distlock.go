package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Run when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another process")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// Provider hands out locks for arbitrary keys on a fixed backend.
type Provider struct {
	redis  *redis.Client
	db     *sql.DB
	ttl    time.Duration
	prefix string
}

// NewProvider creates a lock provider. Keys are namespaced with prefix.
func NewProvider(redisClient *redis.Client, db *sql.DB, prefix string, ttl time.Duration) *Provider {
	return &Provider{redis: redisClient, db: db, ttl: ttl, prefix: prefix}
}

// Lock returns a fresh lock instance for key.
func (p *Provider) Lock(key string) DistLock {
	return NewLock(p.redis, p.db, p.prefix+key, p.ttl)
}

// Run executes fn while holding the lock for key. It does not wait: if the
// lock is taken it returns ErrNotAcquired without calling fn.
func (p *Provider) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l := p.Lock(key)
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
	defer func() {
		// release even when ctx was cancelled mid-run
		_ = l.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped,
// so the lock pins one pooled connection until it is released.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
