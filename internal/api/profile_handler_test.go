package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/edgegate/internal/api"
	"github.com/mwhitford/edgegate/internal/domain"
	"github.com/mwhitford/edgegate/internal/platform/memstore"
	"github.com/mwhitford/edgegate/internal/problem"
	"github.com/mwhitford/edgegate/internal/store"
)

func newProfileRouter() chi.Router {
	return newProfileRouterWith(memstore.NewProfileStore())
}

func newProfileRouterWith(profiles store.ProfileStore) chi.Router {
	handler := api.NewProfileHandler(profiles,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Route("/api/profiles", func(r chi.Router) {
		r.Post("/", handler.CreateProfile)
		r.Get("/", handler.ListProfiles)
		r.Get("/{id}", handler.GetProfile)
		r.Put("/{id}", handler.UpdateProfile)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createProfile(t *testing.T, router http.Handler, displayName string) api.ProfileResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/profiles",
		fmt.Sprintf(`{"displayName":%q}`, displayName), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp api.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateProfile(t *testing.T) {
	router := newProfileRouter()

	t.Run("success", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/profiles",
			`{"displayName":"Ada Lovelace","email":"ada@example.com"}`, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp api.ProfileResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "Ada Lovelace", resp.DisplayName)
		assert.Equal(t, "ada@example.com", resp.Email)
		assert.False(t, resp.CreatedAt.IsZero())

		assert.Equal(t, "/api/profiles/"+resp.ID, w.Header().Get("Location"))
		assert.Equal(t, `"1"`, w.Header().Get("ETag"))
	})

	t.Run("missing display name", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/profiles", `{"email":"ada@example.com"}`, nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, problem.ContentType, w.Header().Get("Content-Type"))

		var doc problem.Details
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		require.Len(t, doc.Errors, 1)
		assert.Equal(t, "displayName", doc.Errors[0].Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/profiles", `{"displayName"`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetProfile(t *testing.T) {
	router := newProfileRouter()
	created := createProfile(t, router, "Grace Hopper")

	t.Run("found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles/"+created.ID, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `"1"`, w.Header().Get("ETag"))

		var resp api.ProfileResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, created.ID, resp.ID)
		assert.Equal(t, "Grace Hopper", resp.DisplayName)
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles/22222222-2222-4222-8222-222222222222", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateProfile(t *testing.T) {
	router := newProfileRouter()
	created := createProfile(t, router, "Grace Hopper")
	path := "/api/profiles/" + created.ID

	t.Run("missing If-Match", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, path, `{"displayName":"Grace"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("matching If-Match bumps the version", func(t *testing.T) {
		header := http.Header{"If-Match": {`"1"`}}
		w := doJSON(t, router, http.MethodPut, path, `{"displayName":"Rear Admiral Hopper"}`, header)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `"2"`, w.Header().Get("ETag"))

		var resp api.ProfileResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Rear Admiral Hopper", resp.DisplayName)
	})

	t.Run("stale If-Match is rejected", func(t *testing.T) {
		header := http.Header{"If-Match": {`"1"`}}
		w := doJSON(t, router, http.MethodPut, path, `{"displayName":"Grace"}`, header)
		require.Equal(t, http.StatusPreconditionFailed, w.Code)

		var doc problem.Details
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, http.StatusPreconditionFailed, doc.Status)
	})

	t.Run("invalid body", func(t *testing.T) {
		header := http.Header{"If-Match": {`"2"`}}
		w := doJSON(t, router, http.MethodPut, path, `{"displayName":""}`, header)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// rendezvousStore delays GetByID until two callers have arrived, forcing
// both editors to load the same version before either one writes.
type rendezvousStore struct {
	store.ProfileStore
	arrivals atomic.Int32
	release  chan struct{}
}

func (s *rendezvousStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if s.arrivals.Add(1) == 2 {
		close(s.release)
	}
	<-s.release
	return s.ProfileStore.GetByID(ctx, id)
}

func TestUpdateProfileConcurrentEditorsOneWins(t *testing.T) {
	profiles := &rendezvousStore{
		ProfileStore: memstore.NewProfileStore(),
		release:      make(chan struct{}),
	}
	router := newProfileRouterWith(profiles)

	seed := domain.NewProfile("Ada Lovelace", "")
	require.NoError(t, profiles.Create(context.Background(), seed))
	path := "/api/profiles/" + seed.ID.String()
	header := http.Header{"If-Match": {`"1"`}}

	names := []string{"Katherine", "Dorothy"}
	codes := make([]int, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			w := doJSON(t, router, http.MethodPut, path,
				fmt.Sprintf(`{"displayName":%q}`, name), header)
			codes[i] = w.Code
		}(i, name)
	}
	wg.Wait()

	// Exactly one editor's update lands; the other gets 412.
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusPreconditionFailed}, codes)

	w := doJSON(t, router, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))

	var final api.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &final))
	winner := names[0]
	if codes[1] == http.StatusOK {
		winner = names[1]
	}
	assert.Equal(t, winner, final.DisplayName)
}

func TestListProfiles(t *testing.T) {
	router := newProfileRouter()
	for i := 0; i < 5; i++ {
		createProfile(t, router, fmt.Sprintf("User %d", i))
	}

	type envelope struct {
		Items []api.ProfileResponse `json:"items"`
		Page  struct {
			Limit  int   `json:"limit"`
			Offset int   `json:"offset"`
			Total  int64 `json:"total"`
		} `json:"page"`
		ContinuationToken string `json:"continuationToken,omitempty"`
	}

	t.Run("default page", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Len(t, env.Items, 5)
		assert.Equal(t, 20, env.Page.Limit)
		assert.Equal(t, int64(5), env.Page.Total)
		assert.Empty(t, env.ContinuationToken)
	})

	t.Run("bounded page carries a continuation token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles?limit=2", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Len(t, env.Items, 2)
		require.NotEmpty(t, env.ContinuationToken)

		next := doJSON(t, router, http.MethodGet, "/api/profiles?limit=2&continuationToken="+env.ContinuationToken, "", nil)
		require.Equal(t, http.StatusOK, next.Code)

		var nextEnv envelope
		require.NoError(t, json.Unmarshal(next.Body.Bytes(), &nextEnv))
		assert.Len(t, nextEnv.Items, 2)
		assert.Equal(t, 2, nextEnv.Page.Offset)
		assert.NotEqual(t, env.Items[0].ID, nextEnv.Items[0].ID)
	})

	t.Run("limit above the maximum is clamped", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles?limit=500", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, 100, env.Page.Limit)
	})

	t.Run("non-numeric limit is rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles?limit=lots", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative offset is rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/profiles?offset=-1", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
