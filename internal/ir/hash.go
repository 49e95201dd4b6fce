package ir

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Domain prefix for content-addressed record identity.
// The version suffix enables future algorithm migration.
const DomainRecord = "compliance/record/v" + RecordVersion

// DefaultAdminRole is the root administrative token. It administers every
// token that has no explicit administrator, including each ADMIN token.
var DefaultAdminRole = Bytes32{}

// CreateRole is the global capability to mint new role sets and to pass
// that capability on.
var CreateRole = crypto.Keccak256Hash([]byte("CREATE_ROLE"))

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) Bytes32 {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out Bytes32
	copy(out[:], h.Sum(nil))
	return out
}

// RecordID derives the identifier of a record from every stored field plus
// the disambiguation offset. ID and Exists are ignored.
//
// Same fields and offset always give the same id, so an id can be
// re-derived independently; the store bumps offset on collision.
func RecordID(r Record, offset int64) (Bytes32, error) {
	if r.Nonce > 1<<63-1 {
		return Bytes32{}, fmt.Errorf("RecordID: nonce %d overflows int64", r.Nonce)
	}
	obj := IRObject{
		"key":                 IRString(r.Key),
		"receiving_entity_id": IRString(r.ReceivingEntityID.Hex()),
		"resource_id":         IRString(r.ResourceID.Hex()),
		"organization_id":     IRString(r.OrganizationID.Hex()),
		"ref":                 IRString(r.Ref),
		"status":              IRString(r.Status.Hex()),
		"owner":               IRString(r.Owner.Hex()),
		"status_issue_date":   IRInt(r.StatusIssueDate),
		"timestamp":           IRInt(r.Timestamp),
		"nonce":               IRInt(int64(r.Nonce)),
		"previous":            IRString(r.Previous.Hex()),
		"offset":              IRInt(offset),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return Bytes32{}, fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustRecordID is like RecordID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordID(r Record, offset int64) Bytes32 {
	id, err := RecordID(r, offset)
	if err != nil {
		panic(err)
	}
	return id
}

// RoleToken derives the capability token for (id, variant, access) as
// keccak256(id ‖ uint8(variant) ‖ uint8(access)), the packed encoding of the
// three values.
func RoleToken(id Bytes32, variant RoleVariant, access RoleAccess) Bytes32 {
	return crypto.Keccak256Hash(id.Bytes(), []byte{byte(variant)}, []byte{byte(access)})
}

// RolesFor returns the three tokens of the (id, variant) role set.
func RolesFor(id Bytes32, variant RoleVariant) RoleSet {
	return RoleSet{
		Read:  RoleToken(id, variant, AccessRead),
		Write: RoleToken(id, variant, AccessWrite),
		Admin: RoleToken(id, variant, AccessAdmin),
	}
}
