package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/mwhitford/edgegate/internal/fault"
	"github.com/mwhitford/edgegate/internal/idempotency"
	"github.com/mwhitford/edgegate/internal/problem"
)

// IdempotencyKeyHeader is the header carrying the client-supplied
// deduplication token on creation requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// replayHeader marks responses served from a stored record rather than a
// fresh computation.
const replayHeader = "Idempotency-Replay"

// Idempotency deduplicates POST requests bearing an Idempotency-Key header.
// Requests without the header pass through untouched.
type Idempotency struct {
	store idempotency.Store
}

// NewIdempotency creates the middleware around the given record store.
func NewIdempotency(store idempotency.Store) *Idempotency {
	return &Idempotency{store: store}
}

// Handle wraps a creation route. The downstream handler runs as the
// store's compute function, so concurrent requests with the same key
// execute it at most once and replays skip it entirely.
func (m *Idempotency) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := uuid.Parse(key); err != nil {
			problem.Respond(w, r, fault.Validation("invalid idempotency key",
				fault.FieldViolation{Field: IdempotencyKeyHeader, Message: "must be a valid UUID"}))
			return
		}

		// The payload hash binds the key to this exact request, so the
		// body has to be read up front and restored for the handler.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			problem.Respond(w, r, fault.Wrap(fault.KindValidation, "failed to read request body", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		payloadHash := idempotency.HashPayload(r.Method, r.URL.Path, body)

		var computed *responseRecorder
		result, err := m.store.Admit(r.Context(), key, payloadHash, func(ctx context.Context) (int, []byte, error) {
			rec := newResponseRecorder()
			computed = rec
			next.ServeHTTP(rec, r.WithContext(ctx))
			return rec.status, rec.body.Bytes(), nil
		})
		if err != nil {
			problem.Respond(w, r, mapAdmitError(err))
			return
		}

		if result.Replayed || computed == nil {
			// Stored records keep only status and body; reconstruct the
			// content type from the status class.
			if result.Status >= http.StatusBadRequest {
				w.Header().Set("Content-Type", problem.ContentType)
			} else {
				w.Header().Set("Content-Type", "application/json")
			}
			w.Header().Set(replayHeader, "true")
			w.WriteHeader(result.Status)
			_, _ = w.Write(result.Body)
			return
		}

		// This caller computed: forward the handler's headers verbatim.
		for name, values := range computed.header {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(result.Status)
		_, _ = w.Write(result.Body)
	})
}

// mapAdmitError converts store errors into tagged faults.
func mapAdmitError(err error) error {
	switch {
	case errors.Is(err, idempotency.ErrPayloadMismatch):
		return fault.Wrap(fault.KindConflict,
			"the idempotency key was already used with a different payload", err)
	case errors.Is(err, idempotency.ErrInProgress):
		return fault.Wrap(fault.KindConflict,
			"a request with this idempotency key is still in progress, retry shortly", err)
	default:
		return err
	}
}

// responseRecorder captures the downstream handler's response so it can be
// stored and forwarded.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: make(http.Header), status: http.StatusOK}
}

func (rec *responseRecorder) Header() http.Header {
	return rec.header
}

func (rec *responseRecorder) WriteHeader(status int) {
	rec.status = status
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	return rec.body.Write(p)
}
