package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/saraAuth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by [Require].
func AuthResultFromContext(ctx context.Context) (*saraAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*saraAuth.AuthResult)
	return res, ok
}

// Require validates the bearer token of every request with engine and
// stores the result in the request context. The client IP is attached with
// [saraAuth.WithClientIP] before validation. Invalid tokens get 401;
// backend failures get 503.
func Require(engine *saraAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			ctx := saraAuth.WithClientIP(r.Context(), clientIP(r))
			res, err := engine.ValidateToken(ctx, token)
			if err != nil {
				if errors.Is(err, saraAuth.ErrTokenInvalid) {
					unauthorized(w)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP attaches the remote address to the request context for the
// public code and passkey endpoints, which are keyed by IP under the
// brute-force guard. Run a trusted proxy-header middleware before it when
// behind a load balancer.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := saraAuth.WithClientIP(r.Context(), clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from an Authorization header using the
// "Bearer" or "SARA" scheme. Scheme names are case-insensitive.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok {
		return "", false
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "SARA") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="sara"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
