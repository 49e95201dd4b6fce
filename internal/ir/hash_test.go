package ir

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		Key:               "k1",
		ReceivingEntityID: Bytes32{0x01},
		ResourceID:        Bytes32{0x02},
		OrganizationID:    Bytes32{0x03},
		Ref:               "https://example.com/cert/1",
		Status:            Bytes32{0x04},
		Owner:             Address{0x05},
		StatusIssueDate:   1700000000,
		Timestamp:         1700000100,
		Nonce:             0,
		Previous:          Sentinel,
	}
}

func TestRecordIDDeterminism(t *testing.T) {
	r := testRecord()

	id1, err := RecordID(r, r.Timestamp)
	require.NoError(t, err)
	id2, err := RecordID(r, r.Timestamp)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "RecordID must be deterministic")
	assert.NotEqual(t, Sentinel, id1)
}

func TestRecordIDIgnoresIDAndExists(t *testing.T) {
	r := testRecord()
	stored := r
	stored.ID = Bytes32{0xff}
	stored.Exists = true

	assert.Equal(t, MustRecordID(r, 1), MustRecordID(stored, 1))
}

func TestRecordIDChangesWithEveryField(t *testing.T) {
	base := testRecord()
	baseID := MustRecordID(base, 10)

	mutations := map[string]func(*Record){
		"key":      func(r *Record) { r.Key = "k2" },
		"entity":   func(r *Record) { r.ReceivingEntityID = Bytes32{0x11} },
		"resource": func(r *Record) { r.ResourceID = Bytes32{0x12} },
		"org":      func(r *Record) { r.OrganizationID = Bytes32{0x13} },
		"ref":      func(r *Record) { r.Ref = "ipfs://other" },
		"status":   func(r *Record) { r.Status = Bytes32{0x14} },
		"owner":    func(r *Record) { r.Owner = Address{0x15} },
		"issued":   func(r *Record) { r.StatusIssueDate++ },
		"created":  func(r *Record) { r.Timestamp++ },
		"nonce":    func(r *Record) { r.Nonce = 1 },
		"previous": func(r *Record) { r.Previous = Bytes32{0x16} },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := base
			mutate(&r)
			assert.NotEqual(t, baseID, MustRecordID(r, 10))
		})
	}

	assert.NotEqual(t, baseID, MustRecordID(base, 11), "offset must change the id")
}

func TestRecordIDNonceOverflow(t *testing.T) {
	r := testRecord()
	r.Nonce = 1 << 63

	_, err := RecordID(r, 0)
	require.Error(t, err)
	assert.Panics(t, func() { MustRecordID(r, 0) })
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, hashWithDomain("a", data), hashWithDomain("b", data))
	// "ab" + 0x00 + "c" must differ from "a" + 0x00 + "bc"
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestRoleTokenPackedEncoding(t *testing.T) {
	id := Bytes32{0xaa}
	packed := append(id.Bytes(), byte(VariantResource), byte(AccessWrite))

	assert.Equal(t, crypto.Keccak256Hash(packed), RoleToken(id, VariantResource, AccessWrite))
}

func TestRolesForDistinctTokens(t *testing.T) {
	id := Bytes32{0x01}
	seen := map[Bytes32]string{}
	for _, v := range RoleVariants {
		set := RolesFor(id, v)
		for _, a := range RoleAccesses {
			token := set.Token(a)
			assert.Equal(t, RoleToken(id, v, a), token)
			if prev, dup := seen[token]; dup {
				t.Fatalf("token for %s/%s collides with %s", v, a, prev)
			}
			seen[token] = v.String() + "/" + a.String()
		}
	}
	assert.Len(t, seen, 9)
	assert.NotContains(t, seen, DefaultAdminRole)
	assert.NotContains(t, seen, CreateRole)
}

func TestGlobalRoles(t *testing.T) {
	assert.Equal(t, Bytes32{}, DefaultAdminRole)
	assert.Equal(t, crypto.Keccak256Hash([]byte("CREATE_ROLE")), CreateRole)
	assert.Equal(t, "compliance/record/v1", DomainRecord)
}
