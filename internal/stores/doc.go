// Package stores provides the Redis-backed records behind saraAuth: code
// sessions, passkey ceremony sessions and the default revocation ledger.
//
// # Design
//
// Each store persists a versioned record in Redis with a TTL; expiry is
// delegated to Redis. Code sessions embed the code in the key, so a lookup
// with a wrong code and a lookup of an expired session are the same miss.
// TakeOne consumes a session with a single Lua GET→DEL, which makes
// confirmation single-use under concurrency. GetOne followed by DeleteOne is
// kept for callers that need to inspect before deciding, and is not atomic.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT enforce rate limits,
// serialize payloads or make authentication decisions; those belong to the
// flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import saraAuth or any sibling internal package other than internal.
//   - Log codes or session payloads.
package stores
