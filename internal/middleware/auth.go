package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/planwise/internal/auth"
)

const (
	SessionCookieName   = "planwise_session"
	ProviderTokenHeader = "X-Provider-Token"
)

// RequireAuth verifies the bearer token or session cookie, rejects revoked
// tokens, and stores the caller's auth.Identity in the request context.
func RequireAuth(issuer *auth.TokenIssuer, revoker auth.Revoker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				unauthorized(w, "authentication required")
				return
			}

			claims, err := issuer.Parse(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "remote", RealIP(r))
				unauthorized(w, "invalid or expired token")
				return
			}

			revoked, err := revoker.Revoked(r.Context(), claims.ID)
			if err != nil {
				logger.Error("check revocation", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if revoked {
				unauthorized(w, "token has been revoked")
				return
			}

			id := claims.Identity()
			id.AccessToken = strings.TrimSpace(r.Header.Get(ProviderTokenHeader))
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// SessionToken returns the bearer token, falling back to the session cookie.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="planwise"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
