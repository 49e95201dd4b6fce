// Package harness runs YAML scenarios against a fresh ledger and checks
// what happened.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	accounts:
//	  admin: "0x0000000000000000000000000000000000000001"
//	  issuer: "0x000000000000000000000000000000000000000a"
//	admin: admin
//	read_policy: open
//	setup:
//	  - invoke: create_role
//	    caller: admin
//	    args: { id: acme, variant: ORGANIZATION }
//	flow:
//	  - invoke: add_entry
//	    caller: issuer
//	    args: { key: cert-1, organization: acme, ref: "ipfs://a" }
//	    save: first
//	    expect:
//	      case: ok
//	assertions:
//	  - type: history
//	    key: cert-1
//	    ids: ["$first"]
//
// Identifiers in args are plain strings (left-aligned into 32 bytes),
// 0x-hex, or $name references to ids saved by earlier add_entry steps.
// Accounts are aliases from the accounts map or 0x addresses.
//
// # Assertion Types
//
//   - trace_contains: an operation appears in the trace with matching args
//   - trace_order: operations appear in the given order
//   - trace_count: an operation appears exactly N times
//   - latest: the head record of a key has the expected fields
//   - history: the ids of a key, newest first
//   - count: the global record counter
//   - role: whether an account holds a capability
//
// State assertions read the store directly and ignore the read policy.
//
// # Deterministic Testing
//
// Record timestamps come from a logical clock seeded by clock_start, so
// record ids are stable across runs. Traces name ids symbolically ($name,
// or $#n in order of first appearance) and accounts by alias, and are
// compared against golden files in testdata/golden.
package harness
