package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/compliance/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record with a recognisable id byte.
func createTestRecord(idByte byte, key string, nonce uint64) ir.Record {
	return ir.Record{
		ID:                ir.Bytes32{0: idByte},
		Key:               key,
		ReceivingEntityID: ir.Bytes32{31: 0xe1},
		ResourceID:        ir.Bytes32{31: 0xa1},
		OrganizationID:    ir.Bytes32{31: 0x01},
		Ref:               "https://example.com/records/" + key,
		Status:            ir.Bytes32{0: 'O', 1: 'K'},
		Owner:             ir.Address{19: 0x42},
		StatusIssueDate:   1700000000,
		Timestamp:         1700000100,
		Nonce:             nonce,
		Previous:          ir.Sentinel,
		Exists:            true,
	}
}

// createTestKeyIndex creates an index entry pointing at the record with the
// given id byte.
func createTestKeyIndex(key string, headByte byte, length uint64) ir.KeyIndex {
	return ir.KeyIndex{
		Key:    key,
		Head:   ir.Bytes32{0: headByte},
		Length: length,
		Exists: true,
	}
}
