// Package problem renders errors as RFC 7807 problem+json bodies. It is the
// single point where a fault.Kind becomes a wire-visible HTTP status code;
// nothing outside this package should pick status codes for errors.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mwhitford/edgegate/internal/api/shared"
	"github.com/mwhitford/edgegate/internal/fault"
)

// ContentType is the media type for problem responses.
const ContentType = "application/problem+json"

// typePrefix is the base of the stable type URI assigned to each error kind.
const typePrefix = "https://edgegate.dev/problems/"

// Details is an RFC 7807 problem document extended with the correlation ID
// and field-level violations for validation failures.
type Details struct {
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	Status        int                    `json:"status"`
	Detail        string                 `json:"detail,omitempty"`
	Instance      string                 `json:"instance,omitempty"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	Errors        []fault.FieldViolation `json:"errors,omitempty"`
}

// mapping pins each error kind to exactly one status code and title.
type mapping struct {
	status int
	title  string
}

var kindTable = map[fault.Kind]mapping{
	fault.KindValidation:         {http.StatusBadRequest, "Bad Request"},
	fault.KindUnauthenticated:    {http.StatusUnauthorized, "Unauthorized"},
	fault.KindForbidden:          {http.StatusForbidden, "Forbidden"},
	fault.KindNotFound:           {http.StatusNotFound, "Not Found"},
	fault.KindConflict:           {http.StatusConflict, "Conflict"},
	fault.KindPreconditionFailed: {http.StatusPreconditionFailed, "Precondition Failed"},
	fault.KindUnsupportedMedia:   {http.StatusUnsupportedMediaType, "Unsupported Media Type"},
	fault.KindRateLimited:        {http.StatusTooManyRequests, "Too Many Requests"},
	fault.KindInternal:           {http.StatusInternalServerError, "Internal Server Error"},
	fault.KindUnavailable:        {http.StatusServiceUnavailable, "Service Unavailable"},
}

// StatusForKind returns the status code assigned to a kind. Unknown kinds
// report 500 so an unmapped error can never leak an arbitrary status.
func StatusForKind(kind fault.Kind) int {
	if m, ok := kindTable[kind]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// From builds the problem document for an error. It is total: any error,
// tagged or not, produces a well-formed document, with untagged errors
// collapsing to internal/500. Internal detail strings are replaced by a
// generic message so causes never leak to clients.
func From(err error, instance, correlationID string) Details {
	kind := fault.KindOf(err)
	m, ok := kindTable[kind]
	if !ok {
		kind = fault.KindInternal
		m = kindTable[fault.KindInternal]
	}

	d := Details{
		Type:          typePrefix + string(kind),
		Title:         m.title,
		Status:        m.status,
		Instance:      instance,
		CorrelationID: correlationID,
	}

	var fe *fault.Error
	if errors.As(err, &fe) && m.status < http.StatusInternalServerError {
		d.Detail = fe.Detail
		d.Errors = fe.Violations
	} else {
		d.Detail = "an unexpected error occurred"
	}
	return d
}

// Respond writes the problem document for err and logs it with the request's
// correlation ID. Log severity scales with the status: 5xx at ERROR, 429 at
// WARN, remaining 4xx at DEBUG.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := shared.GetCorrelationID(r.Context())
	d := From(err, r.URL.Path, correlationID)

	logLevel := slog.LevelDebug
	switch {
	case d.Status >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	case d.Status == http.StatusTooManyRequests:
		logLevel = slog.LevelWarn
	}

	slog.LogAttrs(r.Context(), logLevel, "request failed",
		slog.String("correlation_id", correlationID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status", d.Status),
		slog.String("kind", string(fault.KindOf(err))),
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)))

	WriteJSON(w, r, d)
}

// WriteJSON serializes a problem document with the problem+json media type.
func WriteJSON(w http.ResponseWriter, r *http.Request, d Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(d.Status)
	if err := json.NewEncoder(w).Encode(d); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode problem response", "error", err)
	}
}
