package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwhitford/edgegate/internal/idempotency"
)

// staleLockTimeout bounds how long a pending row can block a key. A row
// whose computation never completed (crashed process, dropped connection)
// is reclaimed once its lock is older than this.
const staleLockTimeout = time.Minute

// pollInterval is how often a waiter re-reads a pending row while the
// winner is still computing.
const pollInterval = 100 * time.Millisecond

// IdempotencyStore implements idempotency.Store on PostgreSQL. The INSERT
// on the key's primary key is the per-key mutual-exclusion primitive: the
// caller whose insert succeeds owns the computation, everyone else polls
// the row until the response lands or the bounded wait expires. The
// response columns are written in a single UPDATE on completion, so a
// partial computation is never visible to readers.
type IdempotencyStore struct {
	pool        *pgxpool.Pool
	retention   time.Duration
	waitTimeout time.Duration
}

var (
	_ idempotency.Store   = (*IdempotencyStore)(nil)
	_ idempotency.Sweeper = (*IdempotencyStore)(nil)
)

// NewIdempotencyStore creates a PostgreSQL implementation of the
// idempotency store. The pool should be initialized and managed by the
// caller.
func NewIdempotencyStore(pool *pgxpool.Pool, retention, waitTimeout time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		pool:        pool,
		retention:   retention,
		waitTimeout: waitTimeout,
	}
}

// row mirrors one idempotency_keys record.
type row struct {
	payloadHash string
	status      *int
	body        []byte
	lockedAt    time.Time
	createdAt   time.Time
	completedAt *time.Time
}

// Admit implements idempotency.Store.
func (s *IdempotencyStore) Admit(ctx context.Context, key, payloadHash string, compute idempotency.ComputeFunc) (idempotency.Result, error) {
	if key == "" {
		status, body, err := compute(ctx)
		if err != nil {
			return idempotency.Result{}, err
		}
		return idempotency.Result{Status: status, Body: body}, nil
	}

	deadline := time.Now().Add(s.waitTimeout)
	for {
		// Read before claiming: replays of committed records are the
		// common case and should not pay for a failed insert. The claim
		// below still arbitrates the contended case.
		r, err := s.lookup(ctx, key)
		if errors.Is(err, pgx.ErrNoRows) {
			claimed, err := s.claim(ctx, key, payloadHash)
			if err != nil {
				return idempotency.Result{}, err
			}
			if claimed {
				return s.computeAndCommit(ctx, key, compute)
			}
			// Another request inserted between our read and our claim;
			// re-read to see what it left behind.
			continue
		}
		if err != nil {
			return idempotency.Result{}, err
		}

		now := time.Now()
		switch {
		case now.Sub(r.createdAt) >= s.retention:
			// Expired record: remove it and race for the key again.
			if err := s.release(ctx, key, r.createdAt); err != nil {
				return idempotency.Result{}, err
			}
			continue

		case r.payloadHash != payloadHash:
			return idempotency.Result{}, idempotency.ErrPayloadMismatch

		case r.completedAt != nil:
			return idempotency.Result{Status: *r.status, Body: r.body, Replayed: true}, nil

		case now.Sub(r.lockedAt) >= staleLockTimeout:
			// The owner died mid-computation; reclaim the key.
			if err := s.releasePending(ctx, key, r.lockedAt); err != nil {
				return idempotency.Result{}, err
			}
			continue
		}

		// The winner is still computing: poll until the bounded wait
		// expires.
		if time.Now().After(deadline) {
			return idempotency.Result{}, idempotency.ErrInProgress
		}
		select {
		case <-ctx.Done():
			return idempotency.Result{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// claim attempts to take ownership of the key. Returns true when this
// caller's insert won, false when another request already holds the key.
func (s *IdempotencyStore) claim(ctx context.Context, key, payloadHash string) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (key, payload_hash, locked_at, created_at)
		VALUES ($1, $2, now(), now())
	`
	_, err := s.pool.Exec(ctx, query, key, payloadHash)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return true, nil
}

// computeAndCommit runs the owned computation. Success commits status and
// body in one UPDATE; any other outcome, panics included, deletes the row
// so a retry can claim the key instead of waiting out the stale-lock
// timeout.
func (s *IdempotencyStore) computeAndCommit(ctx context.Context, key string, compute idempotency.ComputeFunc) (idempotency.Result, error) {
	committed := false
	defer func() {
		if committed {
			return
		}
		// Delete with a fresh context: the request context may already
		// be cancelled, but the row must not stay behind as a phantom
		// lock.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = s.pool.Exec(cleanupCtx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	}()

	status, body, err := compute(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return idempotency.Result{}, err
	}
	if status >= 500 {
		return idempotency.Result{Status: status, Body: body}, nil
	}

	query := `
		UPDATE idempotency_keys
		SET status_code = $1, response_body = $2, completed_at = now()
		WHERE key = $3
	`
	if _, err := s.pool.Exec(ctx, query, status, body, key); err != nil {
		return idempotency.Result{}, fmt.Errorf("failed to store idempotency response: %w", err)
	}
	committed = true
	return idempotency.Result{Status: status, Body: body}, nil
}

// lookup reads the record for a key. Returns pgx.ErrNoRows when absent.
func (s *IdempotencyStore) lookup(ctx context.Context, key string) (*row, error) {
	query := `
		SELECT payload_hash, status_code, response_body, locked_at, created_at, completed_at
		FROM idempotency_keys
		WHERE key = $1
	`
	var r row
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&r.payloadHash,
		&r.status,
		&r.body,
		&r.lockedAt,
		&r.createdAt,
		&r.completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return &r, nil
}

// release removes an expired record, guarded by created_at so a concurrent
// re-claim of the same key is never deleted by mistake.
func (s *IdempotencyStore) release(ctx context.Context, key string, createdAt time.Time) error {
	query := `DELETE FROM idempotency_keys WHERE key = $1 AND created_at = $2`
	if _, err := s.pool.Exec(ctx, query, key, createdAt); err != nil {
		return fmt.Errorf("failed to release expired idempotency key: %w", err)
	}
	return nil
}

// releasePending removes a stale pending row, guarded by locked_at.
func (s *IdempotencyStore) releasePending(ctx context.Context, key string, lockedAt time.Time) error {
	query := `
		DELETE FROM idempotency_keys
		WHERE key = $1 AND locked_at = $2 AND completed_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, query, key, lockedAt); err != nil {
		return fmt.Errorf("failed to reclaim stale idempotency key: %w", err)
	}
	return nil
}

// Sweep implements idempotency.Sweeper by deleting records past the
// retention window.
func (s *IdempotencyStore) Sweep(ctx context.Context) error {
	query := `DELETE FROM idempotency_keys WHERE created_at < $1 AND completed_at IS NOT NULL`
	if _, err := s.pool.Exec(ctx, query, time.Now().Add(-s.retention)); err != nil {
		return fmt.Errorf("failed to sweep idempotency keys: %w", err)
	}
	return nil
}
