package idempotency

import (
	"context"
	"sync"
	"time"
)

// entry is the per-key slot in the memory store. A pending entry (record ==
// nil, done open) marks an in-flight computation; committing fills record
// and closes done. A failed computation removes the entry and closes done so
// waiters can race to claim the key again.
type entry struct {
	payloadHash string
	done        chan struct{}
	record      *Record
}

// MemoryStore is an in-process Store implementation. The per-key entry acts
// as the mutual-exclusion slot: inserting it under the map lock is the
// atomic claim, so unrelated keys never contend beyond the brief map
// critical section.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	retention   time.Duration
	waitTimeout time.Duration
	now         func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory-backed store. retention bounds how long a
// committed record deduplicates replays; waitTimeout bounds how long a
// request that lost the per-key race waits for the winner's result.
func NewMemoryStore(retention, waitTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]*entry),
		retention:   retention,
		waitTimeout: waitTimeout,
		now:         time.Now,
	}
}

// Admit implements Store.
func (s *MemoryStore) Admit(ctx context.Context, key, payloadHash string, compute ComputeFunc) (Result, error) {
	if key == "" {
		status, body, err := compute(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Status: status, Body: body}, nil
	}

	deadline := time.NewTimer(s.waitTimeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if ok && e.record != nil && s.now().Sub(e.record.CreatedAt) >= s.retention {
			// Lazy expiry: an aged-out record is the same as no record.
			delete(s.entries, key)
			ok = false
		}

		if !ok {
			// Claim the slot. The entry is visible to other callers
			// before compute runs, which is what serializes them.
			e = &entry{payloadHash: payloadHash, done: make(chan struct{})}
			s.entries[key] = e
			s.mu.Unlock()
			return s.computeAndCommit(ctx, key, e, compute)
		}

		if e.payloadHash != payloadHash {
			s.mu.Unlock()
			return Result{}, ErrPayloadMismatch
		}

		if e.record != nil {
			rec := e.record
			s.mu.Unlock()
			return Result{Status: rec.Status, Body: rec.Body, Replayed: true}, nil
		}
		s.mu.Unlock()

		// The winner is still computing. Wait for it, then loop to
		// re-read the outcome: a committed record replays, a released
		// slot is claimed fresh.
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-deadline.C:
			return Result{}, ErrInProgress
		case <-e.done:
		}
	}
}

// computeAndCommit runs the winner's computation and publishes the outcome.
// Nothing becomes visible for failed, cancelled or panicking computations:
// the slot is released and waiters race for it again.
func (s *MemoryStore) computeAndCommit(ctx context.Context, key string, e *entry, compute ComputeFunc) (Result, error) {
	var rec *Record
	defer func() {
		s.mu.Lock()
		if rec != nil {
			e.record = rec
		} else {
			delete(s.entries, key)
		}
		close(e.done)
		s.mu.Unlock()
	}()

	status, body, err := compute(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return Result{}, err
	}
	if !storable(status) {
		return Result{Status: status, Body: body}, nil
	}

	rec = &Record{
		PayloadHash: e.payloadHash,
		Status:      status,
		Body:        body,
		CreatedAt:   s.now(),
	}
	return Result{Status: status, Body: body}, nil
}

// Sweep implements Sweeper by dropping committed records older than the
// retention window. In-flight entries are never touched.
func (s *MemoryStore) Sweep(_ context.Context) error {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if e.record != nil && e.record.CreatedAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
	return nil
}

// Len reports the number of live entries. Used by tests and the readiness
// surface.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
