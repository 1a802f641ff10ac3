// Package limiters provides flow-level brute-force presets built on top of the
// internal/rate guard.
//
// # Presets
//
//   - ip_login: 10 attempts per hour per client IP for code login requests.
//   - ip_register: 20 attempts per hour per client IP for registrations.
//   - ip_passkey: 10 attempts per hour per client IP for passkey ceremonies.
//   - code_token: 10 guesses per day per code session id.
//
// [FlowLimiter] is nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import saraAuth or any sibling internal package except internal and internal/rate.
//   - Make policy decisions beyond counting: flow functions decide consequences.
package limiters
