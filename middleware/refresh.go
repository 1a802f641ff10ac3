package middleware

import "net/http"

// RefreshHeader carries a re-issued token after a profile or email change.
// Clients replace their stored token with its value.
const RefreshHeader = "X-Sara-Refresh"

// SetRefreshedToken sets [RefreshHeader] on w. It must be called before
// the handler writes the status line.
func SetRefreshedToken(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	w.Header().Set(RefreshHeader, token)
	w.Header().Add("Access-Control-Expose-Headers", RefreshHeader)
}
