// Package storage groups durable backends for subjects and the token
// ledger. Each sub-package implements both saraAuth.SubjectProvider and
// saraAuth.LedgerStore over one database:
//
//   - gormstore: PostgreSQL or SQLite through GORM
//   - mongostore: MongoDB, with a TTL index reaping ledger rows
//   - boltstore: an embedded bbolt file
//
// The default Redis ledger needs none of these.
package storage
