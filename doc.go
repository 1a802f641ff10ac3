// Package saraAuth is a passwordless token and ephemeral-session engine.
//
// Subjects prove control of an email address by answering a one-time numeric
// code, or finish a WebAuthn ceremony whose challenge the engine issued. A
// successful flow yields a signed bearer token of the form
//
//	<JWS>|<hex HMAC-SHA256(jti, guard secret)>
//
// whose jti names a ledger row and the subject revision it was issued at.
// Validation checks the signature, the guard tag, the ledger row and the
// current revision, in that order. Bumping a subject's revision revokes all
// of its tokens at once; deleting a ledger row revokes one.
//
// Build an [Engine] with [New]. Engine methods are safe for concurrent use.
//
// # Architecture boundaries
//
// saraAuth is the public surface: [Engine], [Builder], [Config] and the
// value types. Flow orchestration, Redis session stores, the brute-force
// guard, audit dispatch and metrics live under internal/. Subject
// persistence is supplied by the caller through [SubjectProvider]; ledger
// backends other than Redis live under storage/.
//
// # What this package must NOT do
//
//   - Log or return the signing private key or the guard secret.
//   - Tell a caller why a code session was not found.
//   - Verify WebAuthn attestations or assertions.
package saraAuth
