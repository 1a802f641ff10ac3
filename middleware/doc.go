// Package middleware adapts saraAuth.Engine token validation to net/http.
//
//   - [Require] validates the Authorization header and stores the
//     *saraAuth.AuthResult in the request context.
//   - [RequireRole] gates a route on a role carried by the token snapshot.
//   - [ClientIP] attaches the remote address on public routes.
//   - [SetRefreshedToken] hands a re-issued token back in [RefreshHeader].
//
// # What this package must NOT do
//
//   - Parse or sign tokens itself; every decision comes from Engine.ValidateToken.
//   - Tell the client why a token was rejected.
package middleware
