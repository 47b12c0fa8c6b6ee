package page_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/edgegate/internal/api/page"
	"github.com/mwhitford/edgegate/internal/fault"
)

func requestWithQuery(query string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/api/profiles?"+query, nil)
}

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := page.Parse(requestWithQuery(""))
		require.NoError(t, err)
		assert.Equal(t, page.DefaultLimit, p.Limit)
		assert.Equal(t, 0, p.Offset)
	})

	t.Run("explicit limit and offset", func(t *testing.T) {
		p, err := page.Parse(requestWithQuery("limit=5&offset=40"))
		require.NoError(t, err)
		assert.Equal(t, 5, p.Limit)
		assert.Equal(t, 40, p.Offset)
	})

	t.Run("limit is capped", func(t *testing.T) {
		p, err := page.Parse(requestWithQuery("limit=5000"))
		require.NoError(t, err)
		assert.Equal(t, page.MaxLimit, p.Limit)
	})

	t.Run("invalid limit is a validation fault", func(t *testing.T) {
		_, err := page.Parse(requestWithQuery("limit=abc"))
		require.Error(t, err)
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})

	t.Run("negative offset is a validation fault", func(t *testing.T) {
		_, err := page.Parse(requestWithQuery("offset=-1"))
		require.Error(t, err)
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})

	t.Run("malformed continuation token is a validation fault", func(t *testing.T) {
		_, err := page.Parse(requestWithQuery("continuationToken=%21%21not-base64%21%21"))
		require.Error(t, err)
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})
}

func TestEnvelopeContinuation(t *testing.T) {
	items := []string{"a", "b"}

	t.Run("more pages remain", func(t *testing.T) {
		env := page.NewEnvelope(items, page.Params{Limit: 2, Offset: 0}, 10)
		require.NotEmpty(t, env.ContinuationToken)
		assert.Equal(t, 10, env.Page.Total)

		// Round-trip: the token resumes at the next offset.
		p, err := page.Parse(requestWithQuery("continuationToken=" + env.ContinuationToken))
		require.NoError(t, err)
		assert.Equal(t, 2, p.Offset)
	})

	t.Run("last page has no token", func(t *testing.T) {
		env := page.NewEnvelope(items, page.Params{Limit: 2, Offset: 8}, 10)
		assert.Empty(t, env.ContinuationToken)
	})

	t.Run("empty result has no token", func(t *testing.T) {
		env := page.NewEnvelope([]string{}, page.Params{Limit: 20, Offset: 0}, 0)
		assert.Empty(t, env.ContinuationToken)
	})
}
