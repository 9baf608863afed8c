package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_Exclusive(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "import:form-1", time.Minute)
	b := NewRedisLock(client, "import:form-1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:import:form-1"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b does not own it, so its release is a no-op
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lock:import:form-1"))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lock:import:form-1"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Expires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "k", time.Second)
	ok, _ := a.Acquire(ctx)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err := NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProviderRun(t *testing.T) {
	mr, client := newRedis(t)
	p := NewProvider(client, nil, "import:", time.Minute)
	ctx := context.Background()

	var inner error
	err := p.Run(ctx, "form-1", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:import:form-1"))
		inner = p.Run(ctx, "form-1", func(context.Context) error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrNotAcquired)
	assert.False(t, mr.Exists("lock:import:form-1"))

	boom := errors.New("boom")
	err = p.Run(ctx, "form-1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:import:form-1"))
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "import:form-1")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Taken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := NewProvider(nil, db, "import:", time.Minute).Lock("form-1").Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
