package middleware

import "net/http"

// RequireRole rejects requests whose token snapshot lacks role with 403.
// It must run inside [Require].
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if !res.Profile.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
