package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// authMiddleware admits requests carrying the configured bearer token or
// basic credentials. Comparisons are constant-time. Rejections get a JSON
// 401 with a WWW-Authenticate challenge and are logged at warn level.
func authMiddleware(cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	challenge := authChallenge(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := cfg.check(r)
			if reason == "" {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("gateway auth failure",
				"reason", reason,
				"remote_addr", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
			)
			w.Header().Set("WWW-Authenticate", challenge)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		})
	}
}

// check returns why r is rejected, or "" when it is admitted. A bearer
// token is tried before basic credentials.
func (a AuthConfig) check(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing authorization header"
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && a.BearerToken != "" {
		if equal(token, a.BearerToken) {
			return ""
		}
	}
	if a.BasicUser != "" && a.BasicPass != "" {
		if user, pass, ok := r.BasicAuth(); ok && equal(user, a.BasicUser) && equal(pass, a.BasicPass) {
			return ""
		}
	}
	return "invalid credentials"
}

func authChallenge(a AuthConfig) string {
	var schemes []string
	if a.BearerToken != "" {
		schemes = append(schemes, `Bearer realm="tickwork"`)
	}
	if a.BasicUser != "" && a.BasicPass != "" {
		schemes = append(schemes, `Basic realm="tickwork"`)
	}
	return strings.Join(schemes, ", ")
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
