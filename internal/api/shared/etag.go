package shared

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mwhitford/edgegate/internal/fault"
)

// FormatETag renders an entity version stamp as a strong ETag. The version
// itself is produced by whatever owns entity storage; this layer only
// formats and compares.
func FormatETag(version int64) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%d", version))
}

// SetETag writes the ETag response header for the current entity version.
func SetETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", FormatETag(version))
}

// CheckIfMatch enforces optimistic concurrency on an update. The request
// must carry an If-Match header; "*" matches any current version, otherwise
// one of the listed ETags must equal the current one. A stale ETag yields a
// precondition-failed fault (412) and a missing header a validation fault.
func CheckIfMatch(r *http.Request, currentVersion int64) error {
	raw := r.Header.Get("If-Match")
	if raw == "" {
		return fault.Validation("updates require an If-Match header",
			fault.FieldViolation{Field: "If-Match", Message: "required header"})
	}

	current := FormatETag(currentVersion)
	for _, candidate := range strings.Split(raw, ",") {
		candidate = strings.TrimSpace(candidate)
		// Weak validators (W/"...") never match under strong comparison.
		if candidate == "*" || candidate == current {
			return nil
		}
	}
	return fault.New(fault.KindPreconditionFailed,
		"the entity was modified since it was last retrieved")
}
