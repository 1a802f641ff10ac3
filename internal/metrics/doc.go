// Package metrics provides lock-free counters and a validate latency
// histogram for saraAuth observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The histogram uses 8 fixed buckets (≤5ms … +Inf). Both are
// allocation-free on the write path.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import saraAuth or any sibling package.
package metrics
