package ir

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Bytes32 is an opaque fixed-width identifier: record ids, entity, resource
// and organization ids, status codes and role tokens.
type Bytes32 = common.Hash

// Address identifies a party: a caller, a grantee or a record owner.
type Address = common.Address

// Sentinel is the "none" value for Record.Previous: the first record of a
// key's list points at it.
var Sentinel = Bytes32{}

// Record is an immutable unit of history.
//
// Records are never mutated or removed once written. Exists distinguishes a
// stored record from the zero value returned for a lookup miss.
type Record struct {
	ID                Bytes32 `json:"id"`
	Key               string  `json:"key"`
	ReceivingEntityID Bytes32 `json:"receiving_entity_id"`
	ResourceID        Bytes32 `json:"resource_id"`
	OrganizationID    Bytes32 `json:"organization_id"`
	Ref               string  `json:"ref"`
	Status            Bytes32 `json:"status"`
	Owner             Address `json:"owner"`
	StatusIssueDate   int64   `json:"status_issue_date"` // Caller-supplied effective date
	Timestamp         int64   `json:"timestamp"`         // Store-assigned creation time
	Nonce             uint64  `json:"nonce"`             // Position in the key's list, from 0
	Previous          Bytes32 `json:"previous"`          // Predecessor id, or Sentinel
	Exists            bool    `json:"exists"`
}

// IsFirst reports whether r is the oldest record of its key's list.
func (r Record) IsFirst() bool {
	return r.Exists && r.Previous == Sentinel
}

// KeyIndex is the per-key index entry: the current head record and the
// number of records ever appended under the key.
type KeyIndex struct {
	Key    string  `json:"key"`
	Head   Bytes32 `json:"head"`
	Length uint64  `json:"length"`
	Exists bool    `json:"exists"`
}

// EntryInput carries the caller-chosen fields of a new record. The store
// fills in ID, Timestamp, Nonce and Previous.
type EntryInput struct {
	Key               string
	ReceivingEntityID Bytes32
	ResourceID        Bytes32
	OrganizationID    Bytes32
	Ref               string
	Status            Bytes32
	StatusIssueDate   int64
	Owner             Address
}

// RoleVariant is the identifier namespace a role set belongs to.
// Capabilities for entity X are unrelated to capabilities for resource X.
type RoleVariant uint8

const (
	VariantEntity RoleVariant = iota
	VariantResource
	VariantOrganization
)

// RoleVariants lists every namespace in declaration order.
var RoleVariants = []RoleVariant{VariantEntity, VariantResource, VariantOrganization}

func (v RoleVariant) String() string {
	switch v {
	case VariantEntity:
		return "ENTITY"
	case VariantResource:
		return "RESOURCE"
	case VariantOrganization:
		return "ORGANIZATION"
	default:
		return fmt.Sprintf("RoleVariant(%d)", uint8(v))
	}
}

// Valid reports whether v is a declared namespace.
func (v RoleVariant) Valid() bool {
	return v <= VariantOrganization
}

// ParseRoleVariant parses a namespace name, case-insensitively.
func ParseRoleVariant(s string) (RoleVariant, error) {
	for _, v := range RoleVariants {
		if strings.EqualFold(s, v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown role variant %q", s)
}

// RoleAccess is an access level. Levels are independent: holding one
// implies nothing about the others.
type RoleAccess uint8

const (
	AccessRead RoleAccess = iota
	AccessWrite
	AccessAdmin
)

// RoleAccesses lists every access level in declaration order.
var RoleAccesses = []RoleAccess{AccessRead, AccessWrite, AccessAdmin}

func (a RoleAccess) String() string {
	switch a {
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	case AccessAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("RoleAccess(%d)", uint8(a))
	}
}

// Valid reports whether a is a declared access level.
func (a RoleAccess) Valid() bool {
	return a <= AccessAdmin
}

// ParseRoleAccess parses an access level name, case-insensitively.
func ParseRoleAccess(s string) (RoleAccess, error) {
	for _, a := range RoleAccesses {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown role access %q", s)
}

// RoleSet holds the three capability tokens of one (id, variant) pair.
type RoleSet struct {
	Read  Bytes32 `json:"read"`
	Write Bytes32 `json:"write"`
	Admin Bytes32 `json:"admin"`
}

// Token returns the token for access.
func (s RoleSet) Token(access RoleAccess) Bytes32 {
	switch access {
	case AccessRead:
		return s.Read
	case AccessWrite:
		return s.Write
	default:
		return s.Admin
	}
}

// StringToBytes32 packs s left-aligned into 32 bytes, the way a short
// string literal becomes a bytes32 value. Strings over 32 bytes are rejected.
func StringToBytes32(s string) (Bytes32, error) {
	var b Bytes32
	if len(s) > len(b) {
		return Bytes32{}, fmt.Errorf("string %q is %d bytes, exceeds 32", s, len(s))
	}
	copy(b[:], s)
	return b, nil
}

// ParseBytes32 accepts either a 0x-prefixed hex value of up to 32 bytes,
// left-padded like a numeric literal, or a short string packed with
// StringToBytes32.
func ParseBytes32(s string) (Bytes32, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return StringToBytes32(s)
	}
	digits := s[2:]
	if len(digits) > 2*common.HashLength {
		return Bytes32{}, fmt.Errorf("hex value %q exceeds 32 bytes", s)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	if _, err := hex.DecodeString(digits); err != nil {
		return Bytes32{}, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	return common.HexToHash(s), nil
}

// ParseAddress parses a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
