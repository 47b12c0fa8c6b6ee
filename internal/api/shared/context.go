package shared

import (
	"context"
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ContextKey is the key type for values stored in the request context.
type ContextKey string

const (
	// CorrelationIDContextKey is the context key for the per-request
	// correlation ID.
	CorrelationIDContextKey ContextKey = "correlationID"

	// SubjectContextKey is the context key for the authenticated subject,
	// set by the auth middleware when bearer authentication is enabled.
	SubjectContextKey ContextKey = "subject"

	// CorrelationHeader is the header clients use to supply their own
	// correlation ID. The same header carries the resolved ID back on
	// every response.
	CorrelationHeader = "x-correlation-id"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// ResolveCorrelationID returns the correlation ID for a request. A non-empty
// client-supplied header value is reused verbatim so callers can stitch their
// own traces; otherwise a fresh ULID is generated. This never fails.
func ResolveCorrelationID(header http.Header) string {
	if v := header.Get(CorrelationHeader); v != "" {
		return v
	}
	return NewCorrelationID()
}

// NewCorrelationID generates a time-sortable ULID encoded as a 26-character
// string. ULIDs carry 80 bits of entropy per millisecond, which makes
// collisions between concurrent requests negligible, and they sort
// chronologically in log storage.
func NewCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WithCorrelationID stores the correlation ID in the context for the
// lifetime of the request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDContextKey, id)
}

// GetCorrelationID retrieves the correlation ID from the context.
// Returns an empty string if none was set.
func GetCorrelationID(ctx context.Context) string {
	id, ok := ctx.Value(CorrelationIDContextKey).(string)
	if !ok {
		return ""
	}
	return id
}
