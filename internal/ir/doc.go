// Package ir provides the foundational types for the compliance record store.
//
// This package contains type definitions, canonical serialization, and
// identifier derivation only. All other internal packages import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - Identifiers are fixed-width 32-byte values (Bytes32); the zero value is
//     the "none" sentinel for a record's predecessor
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Record identifiers are SHA-256 over RFC 8785 canonical JSON with domain
//     separation; role tokens are Keccak-256 over the packed (id, variant,
//     access) triple
package ir
