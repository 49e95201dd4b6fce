package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/compliance/internal/ir"
)

// counterRecords names the global record counter row.
const counterRecords = "records"

// Tx is a store transaction handed to Update and View callbacks.
// It must not be used after the callback returns.
type Tx struct {
	tx *sqlx.Tx
}

// addressHex encodes an address as lowercase hex so that TEXT ordering
// matches byte ordering. Address.Hex applies the mixed-case checksum.
func addressHex(a ir.Address) string {
	return hexutil.Encode(a.Bytes())
}

// recordRow mirrors the records table.
type recordRow struct {
	ID                string `db:"id"`
	Key               string `db:"key"`
	ReceivingEntityID string `db:"receiving_entity_id"`
	ResourceID        string `db:"resource_id"`
	OrganizationID    string `db:"organization_id"`
	Ref               string `db:"ref"`
	Status            string `db:"status"`
	Owner             string `db:"owner"`
	StatusIssueDate   int64  `db:"status_issue_date"`
	Timestamp         int64  `db:"timestamp"`
	Nonce             int64  `db:"nonce"`
	Previous          string `db:"previous"`
}

func (r recordRow) toRecord() ir.Record {
	return ir.Record{
		ID:                common.HexToHash(r.ID),
		Key:               r.Key,
		ReceivingEntityID: common.HexToHash(r.ReceivingEntityID),
		ResourceID:        common.HexToHash(r.ResourceID),
		OrganizationID:    common.HexToHash(r.OrganizationID),
		Ref:               r.Ref,
		Status:            common.HexToHash(r.Status),
		Owner:             common.HexToAddress(r.Owner),
		StatusIssueDate:   r.StatusIssueDate,
		Timestamp:         r.Timestamp,
		Nonce:             uint64(r.Nonce),
		Previous:          common.HexToHash(r.Previous),
		Exists:            true,
	}
}

// keyIndexRow mirrors the key_index table.
type keyIndexRow struct {
	Key    string `db:"key"`
	Head   string `db:"head"`
	Length int64  `db:"length"`
}

const selectRecord = `
	SELECT id, key, receiving_entity_id, resource_id, organization_id, ref,
	       status, owner, status_issue_date, timestamp, nonce, previous
	FROM records`

// Record returns the record stored under id, or a record with
// Exists=false if id was never written.
func (t *Tx) Record(ctx context.Context, id ir.Bytes32) (ir.Record, error) {
	var row recordRow
	err := t.tx.GetContext(ctx, &row, selectRecord+` WHERE id = ?`, id.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Record{}, nil
	}
	if err != nil {
		return ir.Record{}, fmt.Errorf("read record: %w", err)
	}
	return row.toRecord(), nil
}

// RecordExists reports whether id is already taken.
func (t *Tx) RecordExists(ctx context.Context, id ir.Bytes32) (bool, error) {
	var count int
	if err := t.tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM records WHERE id = ?`, id.Hex()); err != nil {
		return false, fmt.Errorf("check record: %w", err)
	}
	return count > 0, nil
}

// InsertRecord stores r. There is no ON CONFLICT clause: an
// existing id is an error, never an overwrite.
func (t *Tx) InsertRecord(ctx context.Context, r ir.Record) error {
	if r.Nonce > 1<<63-1 {
		return fmt.Errorf("insert record: nonce %d overflows int64", r.Nonce)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO records
		(id, key, receiving_entity_id, resource_id, organization_id, ref,
		 status, owner, status_issue_date, timestamp, nonce, previous)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID.Hex(),
		r.Key,
		r.ReceivingEntityID.Hex(),
		r.ResourceID.Hex(),
		r.OrganizationID.Hex(),
		r.Ref,
		r.Status.Hex(),
		addressHex(r.Owner),
		r.StatusIssueDate,
		r.Timestamp,
		int64(r.Nonce),
		r.Previous.Hex(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// KeyIndex returns the index entry for key, with Exists=false if the key
// was never used.
func (t *Tx) KeyIndex(ctx context.Context, key string) (ir.KeyIndex, error) {
	var row keyIndexRow
	err := t.tx.GetContext(ctx, &row, `SELECT key, head, length FROM key_index WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.KeyIndex{Key: key}, nil
	}
	if err != nil {
		return ir.KeyIndex{}, fmt.Errorf("read key index: %w", err)
	}
	return ir.KeyIndex{
		Key:    row.Key,
		Head:   common.HexToHash(row.Head),
		Length: uint64(row.Length),
		Exists: true,
	}, nil
}

// PutKeyIndex creates or moves the index entry for idx.Key.
func (t *Tx) PutKeyIndex(ctx context.Context, idx ir.KeyIndex) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO key_index (key, head, length)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET head = excluded.head, length = excluded.length
	`, idx.Key, idx.Head.Hex(), int64(idx.Length))
	if err != nil {
		return fmt.Errorf("write key index: %w", err)
	}
	return nil
}

// Keys returns every key that has at least one record, in binary order.
func (t *Tx) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	if err := t.tx.SelectContext(ctx, &keys, `SELECT key FROM key_index ORDER BY key COLLATE BINARY ASC`); err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	return keys, nil
}

// IncrementRecordCount bumps the global record counter and returns the new
// value.
func (t *Tx) IncrementRecordCount(ctx context.Context) (uint64, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`, counterRecords)
	if err != nil {
		return 0, fmt.Errorf("increment record count: %w", err)
	}
	return t.RecordCount(ctx)
}

// RecordCount returns the global record counter.
func (t *Tx) RecordCount(ctx context.Context) (uint64, error) {
	var value int64
	err := t.tx.GetContext(ctx, &value, `SELECT value FROM counters WHERE name = ?`, counterRecords)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read record count: %w", err)
	}
	return uint64(value), nil
}

// ReadRecord is a single-read convenience over View + Tx.Record.
func (s *Store) ReadRecord(ctx context.Context, id ir.Bytes32) (ir.Record, error) {
	var rec ir.Record
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		rec, err = tx.Record(ctx, id)
		return err
	})
	return rec, err
}

// ReadKeyIndex is a single-read convenience over View + Tx.KeyIndex.
func (s *Store) ReadKeyIndex(ctx context.Context, key string) (ir.KeyIndex, error) {
	var idx ir.KeyIndex
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		idx, err = tx.KeyIndex(ctx, key)
		return err
	})
	return idx, err
}

// ReadRecordCount is a single-read convenience over View + Tx.RecordCount.
func (s *Store) ReadRecordCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.RecordCount(ctx)
		return err
	})
	return n, err
}
