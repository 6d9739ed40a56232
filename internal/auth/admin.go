// ABOUTME: Admin token gate for the operator HTTP routes (notify, transcript)
// ABOUTME: Requires a static bearer token and attaches an admin identity to the request context

package auth

import (
	"crypto/subtle"
	"net/http"
)

// AdminAppID marks identities admitted by RequireAdminToken.
const AdminAppID = "admin"

// RequireAdminToken creates an HTTP middleware that admits only requests
// whose bearer token equals token. An empty token rejects every request.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, `{"error":"admin access not configured"}`, http.StatusUnauthorized)
				return
			}

			presented, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			id := &Identity{Authenticated: true, AppID: AdminAppID}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
