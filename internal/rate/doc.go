// Package rate provides the Redis-backed brute-force guard used by every
// security-sensitive saraAuth flow.
//
// # Window semantics
//
// Sliding window: every allowed attempt increments the counter and resets
// its TTL, so a steady stream of attempts stays throttled. A blocked call
// does not write. Keys are bfap:<type>:<sha256(target)>, which keeps raw
// IP addresses and session ids out of Redis.
//
// # What this package must NOT do
//
//   - Implement flow-specific policies (those live in internal/limiters).
//   - Be imported outside the saraAuth module.
package rate
