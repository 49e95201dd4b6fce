// Package store provides SQLite-backed durable storage for compliance records
// and role state.
//
// The store holds:
//   - Records: immutable record rows keyed by their content-addressed id
//   - Key index: per-key head pointer and list length
//   - Counters: the global record counter
//   - Role admins / role members: the access-control tables
//
// All mutations run inside Update, which wraps a single transaction: either
// every write of an operation commits or none does. Records can never be
// updated or deleted; triggers reject both at the database level.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: key_index.head must reference a stored record
//
// Fixed-width values are stored as 0x-prefixed hex TEXT.
package store
