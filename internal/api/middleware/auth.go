package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mwhitford/edgegate/internal/api/shared"
	"github.com/mwhitford/edgegate/internal/fault"
	"github.com/mwhitford/edgegate/internal/problem"
)

// Auth provides bearer-token authentication for routes. It verifies
// HMAC-signed JWTs locally; integrating an external identity provider is a
// collaborator's concern, this is only the boundary hook.
type Auth struct {
	secret []byte
}

// NewAuth creates an Auth middleware verifying tokens against the given
// shared secret.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Authenticate validates the Authorization header and adds the token's
// subject to the request context. Failures are rendered as unauthenticated
// problems.
func (m *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			problem.Respond(w, r, fault.New(fault.KindUnauthenticated, "authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			problem.Respond(w, r, fault.New(fault.KindUnauthenticated, "authorization header must use the Bearer scheme"))
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			problem.Respond(w, r, fault.Wrap(fault.KindUnauthenticated, "invalid or expired token", err))
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			problem.Respond(w, r, fault.New(fault.KindUnauthenticated, "token is missing a subject"))
			return
		}

		ctx := context.WithValue(r.Context(), shared.SubjectContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSubject extracts the authenticated subject from the request context.
// Returns the subject and a boolean indicating if it was found.
func GetSubject(r *http.Request) (string, bool) {
	subject, ok := r.Context().Value(shared.SubjectContextKey).(string)
	return subject, ok
}
