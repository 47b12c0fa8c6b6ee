// Package api provides HTTP handlers for the API.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwhitford/edgegate/internal/api/middleware"
	"github.com/mwhitford/edgegate/internal/api/page"
	"github.com/mwhitford/edgegate/internal/api/shared"
	"github.com/mwhitford/edgegate/internal/domain"
	"github.com/mwhitford/edgegate/internal/fault"
	"github.com/mwhitford/edgegate/internal/platform/logger"
	"github.com/mwhitford/edgegate/internal/problem"
	"github.com/mwhitford/edgegate/internal/store"
)

// CreateProfileRequest represents the request body for creating a profile.
type CreateProfileRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=100"`
	Email       string `json:"email"       validate:"omitempty,email"`
}

// UpdateProfileRequest represents the request body for updating a profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=100"`
	Email       string `json:"email"       validate:"omitempty,email"`
}

// ProfileResponse represents the response data for a profile.
type ProfileResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProfileHandler handles profile-related HTTP requests.
type ProfileHandler struct {
	profiles store.ProfileStore
	logger   *slog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles store.ProfileStore, log *slog.Logger) *ProfileHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ProfileHandler")
	}
	return &ProfileHandler{
		profiles: profiles,
		logger:   log.With(slog.String("component", "profile_handler")),
	}
}

// CreateProfile handles POST /api/profiles requests.
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateProfileRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		problem.Respond(w, r, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		problem.Respond(w, r, err)
		return
	}

	profile := domain.NewProfile(req.DisplayName, req.Email)
	if err := h.profiles.Create(r.Context(), profile); err != nil {
		problem.Respond(w, r, fault.Wrap(fault.KindInternal, "failed to create profile", err))
		return
	}

	if subject, ok := middleware.GetSubject(r); ok {
		log = log.With(slog.String("subject", subject))
	}
	log.Debug("profile created", slog.String("profile_id", profile.ID.String()))

	w.Header().Set("Location", "/api/profiles/"+profile.ID.String())
	shared.SetETag(w, profile.Version)
	shared.RespondWithJSON(w, r, http.StatusCreated, profileToResponse(profile))
}

// GetProfile handles GET /api/profiles/{id} requests.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.loadProfile(r)
	if err != nil {
		problem.Respond(w, r, err)
		return
	}

	shared.SetETag(w, profile.Version)
	shared.RespondWithJSON(w, r, http.StatusOK, profileToResponse(profile))
}

// UpdateProfile handles PUT /api/profiles/{id} requests. The request must
// carry an If-Match header with the profile's current ETag; a stale value
// is rejected so concurrent editors cannot silently overwrite each other.
// The header check here only fast-fails obviously stale requests; the
// authoritative comparison happens inside the store's Update, atomically
// with the write.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	profile, err := h.loadProfile(r)
	if err != nil {
		problem.Respond(w, r, err)
		return
	}

	if err := shared.CheckIfMatch(r, profile.Version); err != nil {
		problem.Respond(w, r, err)
		return
	}

	var req UpdateProfileRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		problem.Respond(w, r, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		problem.Respond(w, r, err)
		return
	}

	profile.DisplayName = req.DisplayName
	profile.Email = req.Email
	if err := h.profiles.Update(r.Context(), profile, profile.Version); err != nil {
		switch {
		case errors.Is(err, store.ErrProfileNotFound):
			problem.Respond(w, r, fault.Wrap(fault.KindNotFound, "profile not found", err))
		case errors.Is(err, store.ErrVersionConflict):
			problem.Respond(w, r, fault.Wrap(fault.KindPreconditionFailed,
				"the entity was modified since it was last retrieved", err))
		default:
			problem.Respond(w, r, fault.Wrap(fault.KindInternal, "failed to update profile", err))
		}
		return
	}

	log.Debug("profile updated",
		slog.String("profile_id", profile.ID.String()),
		slog.Int64("version", profile.Version))

	shared.SetETag(w, profile.Version)
	shared.RespondWithJSON(w, r, http.StatusOK, profileToResponse(profile))
}

// ListProfiles handles GET /api/profiles requests, returning the standard
// pagination envelope.
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	params, err := page.Parse(r)
	if err != nil {
		problem.Respond(w, r, err)
		return
	}

	profiles, total, err := h.profiles.List(r.Context(), params.Limit, params.Offset)
	if err != nil {
		problem.Respond(w, r, fault.Wrap(fault.KindInternal, "failed to list profiles", err))
		return
	}

	items := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, profileToResponse(p))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, page.NewEnvelope(items, params, total))
}

// loadProfile parses the path ID and fetches the profile, translating
// failures into tagged faults.
func (h *ProfileHandler) loadProfile(r *http.Request) (*domain.Profile, error) {
	rawID := chi.URLParam(r, "id")
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fault.Validation("invalid profile id",
			fault.FieldViolation{Field: "id", Message: "must be a valid UUID"})
	}

	profile, err := h.profiles.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, fault.Wrap(fault.KindNotFound, "profile not found", err)
		}
		return nil, fault.Wrap(fault.KindInternal, "failed to load profile", err)
	}
	return profile, nil
}

// profileToResponse converts a domain.Profile to a ProfileResponse.
func profileToResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:          p.ID.String(),
		DisplayName: p.DisplayName,
		Email:       p.Email,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
