package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/lenslink/messaging/pkg/logger"
)

type ctxUserKey struct{}

// SecConfig is the transport-security configuration applied in front of the
// API: CORS, optional IP whitelist, per-caller rate limits, backend API keys
// and the HMAC signing keys for user identity headers.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	SigningKeys    map[string]struct{}
}

// Middleware performs CORS handling, IP whitelisting, API-key checks and
// rate limiting before the identity middleware runs. GET /healthz passes
// unauthenticated so deployment probes work without keys.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID,X-User-Signature")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(r)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
					http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
					return
				}
			}

			if r.URL.Path == "/healthz" && r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key, isBackend := apiKey(r, cfg)
			// Requests without a backend key must carry signed identity
			// headers; the signature middleware verifies them next.
			if !isBackend && (r.Header.Get("X-User-ID") == "" || r.Header.Get("X-User-Signature") == "") {
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			if !limiters.Allow(key) {
				logger.Warn("rate_limited", "path", r.URL.Path)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			if isBackend {
				r.Header.Set("X-Role-Name", "backend")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSignedUser verifies the HMAC-SHA256 identity headers and injects
// the verified user id into the request context. Backend callers may supply
// X-User-ID without a signature; everyone else must sign it.
func RequireSignedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if r.Header.Get("X-Role-Name") == "backend" && sig == "" {
			if userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, userID))
			}
			next.ServeHTTP(w, r)
			return
		}
		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"missing signature headers"}`, http.StatusUnauthorized)
			return
		}

		keys := signingKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			http.Error(w, `{"error":"server misconfigured: no signing secrets available"}`, http.StatusInternalServerError)
			return
		}
		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, userID)))
	})
}

// UserIDFromContext returns the verified user id or empty string.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxUserKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SignUserID computes the hex HMAC-SHA256 signature clients send alongside
// their user id. Exported for SDKs and tests.
func SignUserID(signingKey, userID string) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

var runtimeSigningKeys map[string]struct{}

// SetSigningKeys installs the signing key set used by RequireSignedUser.
// Called once at startup before the server begins accepting requests.
func SetSigningKeys(keys map[string]struct{}) { runtimeSigningKeys = keys }

func signingKeys() map[string]struct{} { return runtimeSigningKeys }

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}

// apiKey extracts the caller's API key (Authorization: Bearer or X-API-Key)
// and reports whether it is a configured backend key. The key, or the client
// IP when absent, doubles as the rate-limit bucket id.
func apiKey(r *http.Request, cfg SecConfig) (string, bool) {
	auth := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		key = strings.TrimSpace(auth[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		return clientIP(r), false
	}
	_, ok := cfg.BackendKeys[key]
	return key, ok
}
