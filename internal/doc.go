// Package internal contains helper utilities that are intentionally private to saraAuth:
// secure random generation (session ids, one-time codes, challenges) and the
// bearer wire format (guard tag, token id layout).
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - limiters: flow-level brute-force presets (login, register, code, passkey)
//   - metrics: lock-free counters and latency histograms
//   - rate: core Redis-backed brute-force guard
//   - security: configuration posture report
//   - stores: Redis-backed code, passkey and ledger stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public saraAuth API.
//   - Be imported by any package outside the saraAuth module.
package internal
