package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	val string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.val
	return nil
}

// fakeDB keeps a single lock row in memory. Expiry is driven by the test.
type fakeDB struct {
	mu     sync.Mutex
	holder map[string]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{holder: map[string]string{}}
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	cur := f.holder[key]
	switch sql {
	case tryAcquireSQL:
		if cur != "" && cur != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holder[key] = token
		return fakeRow{val: key}
	case renewSQL:
		if cur != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{val: key}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if sql == releaseSQL && f.holder[key] == token {
		delete(f.holder, key)
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) holderOf(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holder[key]
}

func (f *fakeDB) steal(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holder[key] = "someone-else"
}

func TestAcquireIsExclusive(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	ctx := context.Background()

	first, err := c.Acquire(ctx, "motif_mining", Options{TokenPrefix: "worker-1:"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.Token, "worker-1:"))
	require.Equal(t, first.Token, db.holderOf("motif_mining"))

	_, err = c.Acquire(ctx, "motif_mining", Options{})
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, first.Release(ctx))
	require.ErrorIs(t, context.Cause(first.Context), context.Canceled)
	require.Empty(t, db.holderOf("motif_mining"))

	second, err := c.Acquire(ctx, "motif_mining", Options{})
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestAcquireWaits(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	ctx := context.Background()

	first, err := c.Acquire(ctx, "k", Options{})
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = first.Release(ctx)
	}()

	second, err := c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, second.Token, db.holderOf("k"))
	require.NoError(t, second.Release(ctx))
}

func TestAcquireWaitHonorsContext(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	held, err := c.Acquire(context.Background(), "k", Options{})
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireEmptyKey(t *testing.T) {
	_, err := New(newFakeDB()).Acquire(context.Background(), "", Options{})
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestWithLeaseReleases(t *testing.T) {
	db := newFakeDB()
	c := New(db)

	ran := false
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		ran = true
		require.NotEmpty(t, db.holderOf("k"))
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.Empty(t, db.holderOf("k"))

	boom := errors.New("boom")
	err = c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, db.holderOf("k"))
}

func TestLostLeaseCancelsContext(t *testing.T) {
	db := newFakeDB()
	c := New(db)

	err := c.WithLease(context.Background(), "k", Options{TTL: 20 * time.Millisecond}, func(ctx context.Context) error {
		db.steal("k")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return errors.New("lease was not lost")
		}
	})
	require.ErrorIs(t, err, ErrLost)
	require.Equal(t, "someone-else", db.holderOf("k"))
}

func TestOptionsNormalized(t *testing.T) {
	o := Options{}.normalized()
	require.Equal(t, defaultTTL, o.TTL)
	require.Equal(t, defaultTTL/2, o.RenewEvery)
	require.Equal(t, defaultWaitInterval, o.WaitInterval)

	o = Options{TTL: time.Minute, RenewEvery: 2 * time.Minute, WaitJitter: -1}.normalized()
	require.Equal(t, 30*time.Second, o.RenewEvery)
	require.Zero(t, o.WaitJitter)
}
