// Package security derives a read-only posture report from an engine's
// effective configuration and flags settings that weaken it.
//
// # What this package must NOT do
//
//   - See key material. Only sizes and algorithm names are passed in.
package security
