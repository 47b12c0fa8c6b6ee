// Package domain contains the service's entities. The profile is the demo
// resource every API convention is exercised against; real business
// entities live in downstream services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a minimal created-and-updated entity. Version is the
// optimistic-concurrency stamp surfaced to clients as the ETag; it starts
// at 1 and increments on every successful update.
type Profile struct {
	ID          uuid.UUID
	DisplayName string
	Email       string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProfile creates a profile with a generated ID and an initial version.
func NewProfile(displayName, email string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		ID:          uuid.New(),
		DisplayName: displayName,
		Email:       email,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
