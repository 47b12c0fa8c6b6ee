// Package store defines the storage interfaces and their sentinel errors.
// Implementations live under internal/platform.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mwhitford/edgegate/internal/domain"
)

// ErrProfileNotFound indicates the requested profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// ErrVersionConflict indicates the profile's stored version no longer
// matches the version the caller based its update on.
var ErrVersionConflict = errors.New("profile version conflict")

// ProfileStore manages profile persistence. Entity storage is a
// collaborator concern; the in-memory implementation exists so the API
// surface has something real to exercise.
type ProfileStore interface {
	// Create saves a new profile.
	Create(ctx context.Context, profile *domain.Profile) error

	// GetByID retrieves a profile by its ID.
	// Returns ErrProfileNotFound if no profile exists with the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)

	// List returns a stable-ordered page of profiles and the total count.
	List(ctx context.Context, limit, offset int) ([]*domain.Profile, int, error)

	// Update saves changes to an existing profile and bumps its version,
	// but only while the stored version still equals expectedVersion. The
	// comparison and the write are atomic, so two updates based on the same
	// version can never both succeed.
	// Returns ErrProfileNotFound if no profile exists with the given ID and
	// ErrVersionConflict if the stored version has moved on.
	Update(ctx context.Context, profile *domain.Profile, expectedVersion int64) error
}
