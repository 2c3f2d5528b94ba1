package middleware

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/telemetry"
)

// Access Gate responses
const (
	MessageAuthRequired      = "Authentication required."
	MessageSessionExpired    = "Session expired. Please log in again."
	MessageTokenMalformed    = "Malformed authentication token."
	MessageTokenInvalid      = "Invalid authentication token."
	MessageAuthNotConfigured = "Server authentication is not configured."
)

// TokenVerifier checks a bearer token and returns its verified claims.
type TokenVerifier interface {
	VerifyClaims(token string) (*auth.Claims, error)
}

// AccessGateConfig configures NewAccessGate.
type AccessGateConfig struct {
	Verifier TokenVerifier
	// ProtectedPaths are path prefixes that require a bearer token. A prefix
	// matches itself and everything below it ("/incidents" covers
	// "/incidents/123/evidence" but not "/incidentsX").
	ProtectedPaths []string
	// Metrics is optional.
	Metrics *telemetry.AuthMetrics
}

// NewAccessGate returns middleware that verifies the bearer token on protected
// paths and stores the caller's identity on the request context. Requests to
// other paths pass through untouched. CORS preflights are never gated.
//
// Every request is verified on its own; results are not cached.
func NewAccessGate(cfg AccessGateConfig) func(http.Handler) http.Handler {
	prefixes := normalizePrefixes(cfg.ProtectedPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || !isProtected(prefixes, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ctx := r.Context()

			token, ok := bearerToken(r)
			if !ok {
				cfg.Metrics.RecordAuth(ctx, "bearer", false, "missing", msSince(start))
				writeError(w, http.StatusUnauthorized, MessageAuthRequired)
				return
			}

			claims, err := cfg.Verifier.VerifyClaims(token)
			if err != nil {
				status, message, reason := classify(err)
				cfg.Metrics.RecordAuth(ctx, "bearer", false, reason, msSince(start))
				if status == http.StatusInternalServerError {
					log.Printf("ERROR: access gate cannot verify tokens for %s %s: %v", r.Method, r.URL.Path, err)
				} else {
					log.Printf("WARNING: rejected bearer token for %s %s (badge %q): %v", r.Method, r.URL.Path, peekBadge(token), err)
				}
				writeError(w, status, message)
				return
			}

			cfg.Metrics.RecordAuth(ctx, "bearer", true, "", msSince(start))
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, claims.Identity())))
		})
	}
}

// classify maps a verification error to status, client message and metric reason.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, auth.ErrSigningSecretMissing):
		return http.StatusInternalServerError, MessageAuthNotConfigured, "not_configured"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, MessageSessionExpired, "expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		return http.StatusUnauthorized, MessageTokenMalformed, "malformed"
	default:
		return http.StatusUnauthorized, MessageTokenInvalid, "invalid"
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// peekBadge reads the unverified badge id for log lines only.
func peekBadge(token string) string {
	claims, err := auth.PeekClaims(token)
	if err != nil {
		return ""
	}
	return claims.BadgeID
}

func normalizePrefixes(paths []string) []string {
	prefixes := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if p != "/" {
			p = strings.TrimRight(p, "/")
		}
		prefixes = append(prefixes, p)
	}
	return prefixes
}

func isProtected(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if prefix == "/" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
