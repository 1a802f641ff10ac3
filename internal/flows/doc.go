// Package flows contains pure-function orchestrators for Engine operations.
//
// Each Run* function accepts a dependency struct of funcs and returns a
// result carrying a classified failure. The root Engine builds the deps,
// then maps failures to public errors, audit events and metrics.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import saraAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through the deps.
package flows
