// Package idempotency deduplicates creation requests keyed by a
// client-supplied Idempotency-Key. The first request for a key computes and
// stores its response; replays with the same key and payload get the stored
// response back verbatim, and reuse of a key with a different payload is
// rejected. Concurrent requests for the same key are serialized so the
// computation runs at most once.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrPayloadMismatch reports that a key already holds a record for a
	// different payload. Surfaces as a 409 Conflict.
	ErrPayloadMismatch = errors.New("idempotency key was already used with a different payload")

	// ErrInProgress reports that another request holding the same key is
	// still computing and the bounded wait for its result expired. The
	// caller may retry. Surfaces as a 409 Conflict.
	ErrInProgress = errors.New("a request with this idempotency key is still in progress")
)

// ComputeFunc produces the response for a creation request. It runs at most
// once per key among concurrent callers.
type ComputeFunc func(ctx context.Context) (status int, body []byte, err error)

// Result is the outcome of an admitted computation.
type Result struct {
	Status   int
	Body     []byte
	Replayed bool
}

// Record is a committed idempotency record. For a given key at most one
// payload hash is ever stored; the record is read-only after commit and
// disappears only through expiry.
type Record struct {
	PayloadHash string
	Status      int
	Body        []byte
	CreatedAt   time.Time
}

// Store admits creation requests at most once per key.
//
// The contract, for Admit(ctx, key, payloadHash, compute):
//   - key == "": compute runs unconditionally, nothing is stored.
//   - key unknown: compute runs under an exclusive per-key slot and its
//     result is stored, unless compute fails or is cancelled, in which case
//     nothing becomes visible.
//   - key known with the same payload hash: the stored result is returned
//     with Replayed set; compute never runs.
//   - key known with a different payload hash: ErrPayloadMismatch.
//   - key claimed by a concurrent in-flight request: the caller waits for
//     the winner's result up to a bounded timeout, then ErrInProgress.
//
// Records older than the retention window are treated as absent.
type Store interface {
	Admit(ctx context.Context, key, payloadHash string, compute ComputeFunc) (Result, error)
}

// Sweeper proactively removes expired records. Both backends also expire
// lazily on lookup, so sweeping only bounds memory and table growth.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// HashPayload derives the payload hash stored alongside a key: the SHA-256
// of method, path and raw body. Including method and path means the same
// key cannot silently replay across different endpoints.
func HashPayload(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'|'})
	h.Write([]byte(path))
	h.Write([]byte{'|'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// RunSweeper periodically sweeps expired records until the context is
// cancelled. Intended to run as a background goroutine owned by the server.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Warn("idempotency sweep failed", "error", err)
			}
		}
	}
}

// storable reports whether a computed response should be committed.
// Server-side failures are not stored so clients can retry them.
func storable(status int) bool {
	return status < 500
}
