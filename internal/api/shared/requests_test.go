package shared_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/edgegate/internal/api/shared"
	"github.com/mwhitford/edgegate/internal/fault"
)

type testRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=1,max=100"`
	Email       string `json:"email"       validate:"omitempty,email"`
}

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		var req testRequest
		err := shared.DecodeJSON(jsonRequest(`{"displayName":"Ada Lovelace"}`), &req)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", req.DisplayName)
	})

	t.Run("malformed body is a validation fault", func(t *testing.T) {
		var req testRequest
		err := shared.DecodeJSON(jsonRequest(`{"displayName":`), &req)
		require.Error(t, err)
		assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	})

	t.Run("wrong content type is an unsupported-media fault", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader("displayName=Ada"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		var req testRequest
		err := shared.DecodeJSON(r, &req)
		require.Error(t, err)
		assert.Equal(t, fault.KindUnsupportedMedia, fault.KindOf(err))
	})

	t.Run("content type parameters are accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader(`{}`))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")

		var req testRequest
		assert.NoError(t, shared.DecodeJSON(r, &req))
	})
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		assert.NoError(t, shared.ValidateStruct(testRequest{DisplayName: "Ada"}))
	})

	t.Run("violations use json field names", func(t *testing.T) {
		err := shared.ValidateStruct(testRequest{Email: "not-an-email"})
		require.Error(t, err)

		var fe *fault.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, fault.KindValidation, fe.Kind)
		require.Len(t, fe.Violations, 2)

		byField := map[string]string{}
		for _, v := range fe.Violations {
			byField[v.Field] = v.Message
		}
		assert.Equal(t, "required field", byField["displayName"])
		assert.Equal(t, "invalid email format", byField["email"])
	})
}
