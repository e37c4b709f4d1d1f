package postgres

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tradepost/tradepost/errs"
)

// The pair lock is a cross-process advisory mutex kept in a table row.
// Holders that die without releasing are taken over once the row is
// older than the TTL.
const (
	pairLockTTL  = 30 * time.Second
	pairLockPoll = 100 * time.Millisecond
)

// AcquirePairLock blocks until the named lock is held, the wait elapses,
// or ctx is done. A lapsed wait yields a busy error; callers should retry
// with backoff rather than treat it as a hard failure.
func (p *Postgres) AcquirePairLock(ctx context.Context, key string, wait time.Duration) error {
	deadline := time.Now().Add(wait)

	for {
		acquired, err := p.tryAcquirePairLock(ctx, key)
		if err != nil {
			return err
		}

		if acquired {
			return nil
		}

		if time.Now().After(deadline) {
			return errs.NewBusyError("could not acquire pair lock " + key)
		}

		select {
		case <-ctx.Done():
			return errs.NewBusyError("could not acquire pair lock " + key)
		case <-time.After(pairLockPoll + rand.N(pairLockPoll)):
		}
	}
}

func (p *Postgres) tryAcquirePairLock(ctx context.Context, key string) (bool, error) {
	// Insert wins the lock; a conflicting row only yields if stale.
	const q = `
		INSERT INTO pair_locks (key)
		VALUES (@key)
		ON CONFLICT (key) DO UPDATE
		SET locked_at = now()
		WHERE pair_locks.locked_at < now() - make_interval(secs => @ttl_seconds)
	`

	tag, err := p.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"key":         key,
		"ttl_seconds": pairLockTTL.Seconds(),
	})
	if err != nil {
		return false, fmt.Errorf("sql acquire pair lock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) ReleasePairLock(ctx context.Context, key string) error {
	const q = `
		DELETE FROM pair_locks
		WHERE key = @key
	`

	_, err := p.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"key": key,
	})
	if err != nil {
		return fmt.Errorf("sql release pair lock: %w", err)
	}

	return nil
}
