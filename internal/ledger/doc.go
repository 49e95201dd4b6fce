// Package ledger implements the compliance record store.
//
// Records are immutable and live in per-key backward linked lists: the
// key index holds the newest record (the head) and the number of records
// ever appended under the key, and every record points at its
// predecessor. The first record of a key points at ir.Sentinel.
//
// ARCHITECTURE:
//
// Each AddEntry runs as one store transaction:
//  1. Authorization: caller needs WRITE on the entity, the resource or the
//     organization of the new record (access.Controller.CheckAnyRoleFor).
//  2. Read the key index to find nonce and previous.
//  3. Derive the identifier, retrying with an incremented offset while the
//     identifier is taken. The retry loop is bounded by an attempt budget.
//  4. Insert the record, move the head, bump the global counter.
//
// Any failure rolls the whole transaction back: there is no partial
// append.
//
// CONCURRENCY:
//
// The store serializes transactions over a single SQLite connection. The
// ledger additionally holds a per-key mutex across each AddEntry, so the
// read-head/write-head sequence for one key is never interleaved even if
// the store is later given a connection pool.
//
// READ POLICY:
//
// Reads are ungated by default (ReadOpen). With ReadGated, a record is
// only returned to callers holding READ on one of its identifiers. Misses
// carry no identifiers and are always returned.
package ledger
