// Package page implements the pagination envelope used by every list
// endpoint: an items array, a page block with limit/offset/total, and an
// opaque continuation token pointing at the next page.
package page

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/mwhitford/edgegate/internal/fault"
)

const (
	// DefaultLimit applies when the client sends no limit parameter.
	DefaultLimit = 20

	// MaxLimit caps client-supplied limits.
	MaxLimit = 100
)

// Params are the parsed paging inputs for a list request.
type Params struct {
	Limit  int
	Offset int
}

// Page is the paging block of the response envelope.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Envelope is the list response shape.
type Envelope struct {
	Items             interface{} `json:"items"`
	Page              Page        `json:"page"`
	ContinuationToken string      `json:"continuationToken,omitempty"`
}

// Parse reads limit, offset and continuationToken query parameters. A
// continuation token, when present, wins over an explicit offset. Malformed
// values yield validation faults.
func Parse(r *http.Request) (Params, error) {
	p := Params{Limit: DefaultLimit}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Params{}, fault.Validation("invalid paging parameters",
				fault.FieldViolation{Field: "limit", Message: "must be a positive integer"})
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
		p.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Params{}, fault.Validation("invalid paging parameters",
				fault.FieldViolation{Field: "offset", Message: "must be a non-negative integer"})
		}
		p.Offset = offset
	}

	if raw := q.Get("continuationToken"); raw != "" {
		offset, err := decodeToken(raw)
		if err != nil {
			return Params{}, fault.Validation("invalid paging parameters",
				fault.FieldViolation{Field: "continuationToken", Message: "malformed continuation token"})
		}
		p.Offset = offset
	}

	return p, nil
}

// NewEnvelope wraps a page of items. When more items remain past this page,
// the envelope carries a continuation token for the next offset.
func NewEnvelope(items interface{}, p Params, total int) Envelope {
	e := Envelope{
		Items: items,
		Page:  Page{Limit: p.Limit, Offset: p.Offset, Total: total},
	}
	if next := p.Offset + p.Limit; next < total {
		e.ContinuationToken = encodeToken(next)
	}
	return e
}

// The token is an opaque offset so clients cannot depend on its shape.
func encodeToken(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeToken(token string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, strconv.ErrSyntax
	}
	return offset, nil
}
