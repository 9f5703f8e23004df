package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/apperr"
)

const keyPrefix = "staybook:lock:"

type Options struct {
	// Expiry bounds how long a crashed holder keeps the key.
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// Locker is a cluster-wide keyed mutex on Redis.
type Locker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *slog.Logger
}

func NewClient(addr, password string, db int) *goredislib.Client {
	return goredislib.NewClient(&goredislib.Options{Addr: addr, Password: password, DB: db})
}

func NewLocker(client goredislib.UniversalClient, opts Options, logger *slog.Logger) *Locker {
	if opts.Expiry <= 0 {
		opts.Expiry = 30 * time.Second
	}
	if opts.Tries <= 0 {
		opts.Tries = 64
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{rs: redsync.New(goredis.NewPool(client)), opts: opts, logger: logger}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	m := l.rs.NewMutex(keyPrefix+key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)
	if err := m.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Wrap(apperr.ErrConflict, fmt.Sprintf("lock %s busy", key), err)
	}
	return func() {
		// a fresh context so cancellation of the request still releases the key
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := m.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Warn("lock release failed", "key", key, "error", err)
		}
	}, nil
}

var _ policies.Locker = (*Locker)(nil)
