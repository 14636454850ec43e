package tempuser

import (
	"context"
	"net/http"
	"strings"

	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
)

type userKeyType struct{}

var userKey = userKeyType{}

type TokenLookup func(token string) (userdomain.User, bool)

// WithUser resolves the caller from "Authorization: Bearer <token>" or, for
// websocket handshakes, from the "token" query parameter.
func WithUser(lookup TokenLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}

			user, ok := lookup(token)
			if !ok {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// User returns the caller stored by WithUser.
func User(r *http.Request) userdomain.User {
	u, _ := r.Context().Value(userKey).(userdomain.User)
	return u
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
