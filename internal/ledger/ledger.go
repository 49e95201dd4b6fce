package ledger

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/roach88/compliance/internal/access"
	"github.com/roach88/compliance/internal/ir"
	"github.com/roach88/compliance/internal/store"
)

// ReadPolicy selects whether record reads are gated by READ capability.
type ReadPolicy string

const (
	// ReadOpen returns records to any caller.
	ReadOpen ReadPolicy = "open"

	// ReadGated returns a record only to callers holding READ on its
	// entity, resource or organization.
	ReadGated ReadPolicy = "gated"
)

// ParseReadPolicy converts a config value to a ReadPolicy.
func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch p := ReadPolicy(s); p {
	case ReadOpen, ReadGated:
		return p, nil
	case "":
		return ReadOpen, nil
	}
	return "", fmt.Errorf("unknown read policy %q (want %q or %q)", s, ReadOpen, ReadGated)
}

// Ledger is the record store: per-key linked histories of immutable
// records, with appends gated by access control.
//
// Thread-safety: all methods are safe for concurrent use.
type Ledger struct {
	store         *store.Store
	access        *access.Controller
	clock         Clock
	opIDs         OpIDGenerator
	logger        *zap.Logger
	readPolicy    ReadPolicy
	maxIDAttempts int
	locks         *keyLocks
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger for the ledger and its access controller.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithClock sets the timestamp source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithOpIDGenerator sets the source of log correlation ids.
// Default: UUIDv7Generator.
func WithOpIDGenerator(g OpIDGenerator) Option {
	return func(l *Ledger) {
		l.opIDs = g
	}
}

// WithReadPolicy sets the read policy. Default: ReadOpen.
func WithReadPolicy(p ReadPolicy) Option {
	return func(l *Ledger) {
		l.readPolicy = p
	}
}

// WithMaxIDAttempts bounds the identifier collision loop.
// Default: DefaultMaxIDAttempts. Values below 1 are ignored.
func WithMaxIDAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxIDAttempts = n
		}
	}
}

// New creates a Ledger over s. Role state lives in the same store.
func New(s *store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:         s,
		clock:         SystemClock{},
		opIDs:         UUIDv7Generator{},
		logger:        zap.NewNop(),
		readPolicy:    ReadOpen,
		maxIDAttempts: DefaultMaxIDAttempts,
		locks:         newKeyLocks(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.access = access.New(s, access.WithLogger(l.logger))
	return l
}

// Access returns the controller holding the ledger's role state.
func (l *Ledger) Access() *access.Controller {
	return l.access
}

// AddEntry appends a record to the list of in.Key and returns its
// identifier.
//
// The caller needs WRITE on in.ReceivingEntityID, in.ResourceID or
// in.OrganizationID. The record gets the next nonce of the key and points
// at the previous head. Failures leave the store untouched.
func (l *Ledger) AddEntry(ctx context.Context, caller ir.Address, in ir.EntryInput) (ir.Bytes32, error) {
	log := l.logger.With(zap.String("op_id", l.opIDs.Generate()), zap.String("key", in.Key))

	unlock := l.locks.Lock(in.Key)
	defer unlock()

	now := l.clock.Now()
	var rec ir.Record
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		if err := l.access.CheckAnyRoleFor(ctx, tx, "addEntry", caller,
			in.ReceivingEntityID, in.ResourceID, in.OrganizationID, ir.AccessWrite); err != nil {
			return err
		}

		idx, err := tx.KeyIndex(ctx, in.Key)
		if err != nil {
			return err
		}

		rec = ir.Record{
			Key:               in.Key,
			ReceivingEntityID: in.ReceivingEntityID,
			ResourceID:        in.ResourceID,
			OrganizationID:    in.OrganizationID,
			Ref:               in.Ref,
			Status:            in.Status,
			Owner:             in.Owner,
			StatusIssueDate:   in.StatusIssueDate,
			Timestamp:         now,
			Nonce:             0,
			Previous:          ir.Sentinel,
		}
		if idx.Exists {
			rec.Nonce = idx.Length
			rec.Previous = idx.Head
		}

		rec.ID, err = l.freeID(ctx, tx, log, rec)
		if err != nil {
			return err
		}
		rec.Exists = true

		if err := tx.InsertRecord(ctx, rec); err != nil {
			return err
		}
		if err := tx.PutKeyIndex(ctx, ir.KeyIndex{Key: in.Key, Head: rec.ID, Length: rec.Nonce + 1}); err != nil {
			return err
		}
		_, err = tx.IncrementRecordCount(ctx)
		return err
	})
	if err != nil {
		if IsBudgetError(err) {
			log.Error("add entry aborted", zap.Error(err))
		}
		return ir.Bytes32{}, err
	}

	log.Debug("entry added",
		zap.Stringer("caller", caller),
		zap.Stringer("id", rec.ID),
		zap.Uint64("nonce", rec.Nonce),
		zap.Stringer("previous", rec.Previous),
	)
	return rec.ID, nil
}

// freeID derives the identifier of rec, starting the offset at the record
// timestamp and incrementing it while the identifier is already taken.
// The sentinel is never handed out.
func (l *Ledger) freeID(ctx context.Context, tx *store.Tx, log *zap.Logger, rec ir.Record) (ir.Bytes32, error) {
	budget := newAttemptBudget(rec.Key, l.maxIDAttempts)
	offset := rec.Timestamp
	for {
		if err := budget.Check(); err != nil {
			return ir.Bytes32{}, err
		}

		id, err := ir.RecordID(rec, offset)
		if err != nil {
			return ir.Bytes32{}, err
		}
		taken, err := tx.RecordExists(ctx, id)
		if err != nil {
			return ir.Bytes32{}, err
		}
		if !taken && id != ir.Sentinel {
			return id, nil
		}

		log.Debug("identifier collision", zap.Stringer("id", id), zap.Int64("offset", offset))
		if offset == math.MaxInt64 {
			return ir.Bytes32{}, &BudgetExceededError{Key: rec.Key, Attempts: budget.Used(), Limit: l.maxIDAttempts}
		}
		offset++
	}
}

// GetEntry returns the record stored under id, or a record with
// Exists=false if id was never written.
func (l *Ledger) GetEntry(ctx context.Context, caller ir.Address, id ir.Bytes32) (ir.Record, error) {
	var rec ir.Record
	err := l.store.View(ctx, func(tx *store.Tx) error {
		var err error
		rec, err = tx.Record(ctx, id)
		if err != nil {
			return err
		}
		return l.checkRead(ctx, tx, "getEntry", caller, rec)
	})
	if err != nil {
		return ir.Record{}, err
	}
	return rec, nil
}

// GetLatest returns the head record of key, or a record with Exists=false
// if key was never used.
func (l *Ledger) GetLatest(ctx context.Context, caller ir.Address, key string) (ir.Record, error) {
	var rec ir.Record
	err := l.store.View(ctx, func(tx *store.Tx) error {
		idx, err := tx.KeyIndex(ctx, key)
		if err != nil || !idx.Exists {
			return err
		}
		rec, err = tx.Record(ctx, idx.Head)
		if err != nil {
			return err
		}
		return l.checkRead(ctx, tx, "getLatest", caller, rec)
	})
	if err != nil {
		return ir.Record{}, err
	}
	return rec, nil
}

// History returns every record of key, newest first, by following
// previous from the head until a miss. All reads share one snapshot.
func (l *Ledger) History(ctx context.Context, caller ir.Address, key string) ([]ir.Record, error) {
	records := []ir.Record{}
	err := l.store.View(ctx, func(tx *store.Tx) error {
		idx, err := tx.KeyIndex(ctx, key)
		if err != nil || !idx.Exists {
			return err
		}

		next := idx.Head
		for {
			rec, err := tx.Record(ctx, next)
			if err != nil {
				return err
			}
			if !rec.Exists {
				break
			}
			if uint64(len(records)) == idx.Length {
				return fmt.Errorf("history %q: chain longer than index length %d", key, idx.Length)
			}
			if err := l.checkRead(ctx, tx, "history", caller, rec); err != nil {
				return err
			}
			records = append(records, rec)
			next = rec.Previous
		}

		if uint64(len(records)) != idx.Length {
			return fmt.Errorf("history %q: reached %d records, index says %d", key, len(records), idx.Length)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of records ever appended, across all keys.
func (l *Ledger) Count(ctx context.Context) (uint64, error) {
	return l.store.ReadRecordCount(ctx)
}

// KeyInfo returns the raw index entry of key.
func (l *Ledger) KeyInfo(ctx context.Context, key string) (ir.KeyIndex, error) {
	return l.store.ReadKeyIndex(ctx, key)
}

func (l *Ledger) checkRead(ctx context.Context, tx *store.Tx, op string, caller ir.Address, rec ir.Record) error {
	if l.readPolicy != ReadGated || !rec.Exists {
		return nil
	}
	return l.access.CheckAnyRoleFor(ctx, tx, op, caller,
		rec.ReceivingEntityID, rec.ResourceID, rec.OrganizationID, ir.AccessRead)
}
