package harness

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/compliance/internal/access"
	"github.com/roach88/compliance/internal/ir"
	"github.com/roach88/compliance/internal/ledger"
	"github.com/roach88/compliance/internal/store"
)

// Harness executes one scenario against a fresh ledger.
//
// Timestamps come from a logical clock and op ids are fixed, so the same
// scenario always derives the same record ids. Ids appear in the trace as
// symbolic names ($saved or $#n in order of first appearance), keeping
// golden files readable.
type Harness struct {
	store  *store.Store
	ledger *ledger.Ledger
	seq    *ledger.LogicalClock
	logger *zap.Logger

	accounts map[string]ir.Address
	aliases  map[ir.Address]string
	saved    map[string]ir.Bytes32
	symbols  map[ir.Bytes32]string
}

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger     *zap.Logger
	ledgerOpts []ledger.Option
}

// WithLogger sets the logger passed to the ledger and used for step logs.
func WithLogger(l *zap.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLedgerOptions sets ledger options applied before the scenario's
// own read_policy and max_id_attempts, which take precedence when set.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(c *runConfig) {
		c.ledgerOpts = append(c.ledgerOpts, opts...)
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory store and ledger
// 2. Bootstrap the scenario admin
// 3. Execute setup steps (each must succeed)
// 4. Execute flow steps with expect validation
// 5. Evaluate assertions against trace and final state
//
// A returned error means the scenario itself is broken (bad arguments,
// unknown accounts, failed setup). Expectation mismatches are reported in
// Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario, cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	admin, err := h.account(scenario.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	if err := h.ledger.Access().Bootstrap(ctx, admin); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		out, err := h.executeStep(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if out.Case != CaseOK {
			return nil, fmt.Errorf("setup[%d]: %s %s: %v", i, step.Invoke, out.Case, out.Err)
		}
	}

	for i, step := range scenario.Flow {
		out, err := h.executeStep(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		if msg := checkExpect(step, out); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, result.Trace, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, scenario *Scenario, cfg runConfig) (*Harness, error) {
	clockStart := scenario.ClockStart
	if clockStart == 0 {
		clockStart = DefaultClockStart
	}
	logger := cfg.logger

	opts := append([]ledger.Option{}, cfg.ledgerOpts...)
	if scenario.ReadPolicy != "" {
		policy, err := ledger.ParseReadPolicy(scenario.ReadPolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ledger.WithReadPolicy(policy))
	}
	if scenario.MaxIDAttempts != 0 {
		opts = append(opts, ledger.WithMaxIDAttempts(scenario.MaxIDAttempts))
	}
	opts = append(opts,
		ledger.WithLogger(logger),
		ledger.WithClock(ledger.NewLogicalClock(clockStart)),
		ledger.WithOpIDGenerator(ledger.NewFixedGenerator(scenario.Name)),
	)

	h := &Harness{
		store:    st,
		seq:      ledger.NewLogicalClock(0),
		logger:   logger.With(zap.String("scenario", scenario.Name)),
		accounts: make(map[string]ir.Address, len(scenario.Accounts)),
		aliases:  make(map[ir.Address]string, len(scenario.Accounts)),
		saved:    make(map[string]ir.Bytes32),
		symbols:  make(map[ir.Bytes32]string),
	}
	for alias, hex := range scenario.Accounts {
		addr, err := ir.ParseAddress(hex)
		if err != nil {
			return nil, fmt.Errorf("accounts.%s: %w", alias, err)
		}
		h.accounts[alias] = addr
		h.aliases[addr] = alias
	}

	h.ledger = ledger.New(st, opts...)
	return h, nil
}

// outcome is what one step actually did.
type outcome struct {
	Case   string
	Result ir.IRObject
	Err    error
}

// executeStep invokes one operation, traces invocation and completion and
// returns the outcome. The error return is reserved for malformed steps.
func (h *Harness) executeStep(ctx context.Context, step FlowStep, result *Result) (outcome, error) {
	traceArgs, err := convertArgsToIRObject(step.Args)
	if err != nil {
		return outcome{}, fmt.Errorf("args: %w", err)
	}
	caller, err := h.account(step.Caller)
	if err != nil {
		return outcome{}, fmt.Errorf("caller: %w", err)
	}

	result.AddInvocationTrace(step.Invoke, step.Caller, traceArgs, h.seq.Now())

	res, opErr, err := h.invoke(ctx, caller, step, argReader{h: h, raw: step.Args})
	if err != nil {
		return outcome{}, err
	}

	out := outcome{Case: classify(opErr), Result: res, Err: opErr}
	if out.Case == CaseError {
		out.Result = ir.IRObject{"message": ir.IRString(opErr.Error())}
	}
	result.AddCompletionTrace(step.Invoke, out.Case, out.Result, h.seq.Now())

	h.logger.Debug("step completed",
		zap.String("action", step.Invoke),
		zap.String("caller", step.Caller),
		zap.String("case", out.Case),
	)
	return out, nil
}

// invoke dispatches one operation. It returns the rendered result, the
// operation error (classified into a case) and an argument error.
func (h *Harness) invoke(ctx context.Context, caller ir.Address, step FlowStep, args argReader) (ir.IRObject, error, error) {
	l := h.ledger
	ac := l.Access()

	switch step.Invoke {
	case ActionCreateRole:
		id, variant, err := args.idVariant()
		if err != nil {
			return nil, nil, err
		}
		_, opErr := ac.CreateRole(ctx, caller, id, variant)
		return nil, opErr, nil

	case ActionGrantRole, ActionRevokeRole:
		account, err := args.account("account")
		if err != nil {
			return nil, nil, err
		}
		id, variant, access, err := args.capability()
		if err != nil {
			return nil, nil, err
		}
		if step.Invoke == ActionGrantRole {
			return nil, ac.GrantRole(ctx, caller, account, id, variant, access), nil
		}
		return nil, ac.RevokeRole(ctx, caller, account, id, variant, access), nil

	case ActionRenounceRole:
		id, variant, access, err := args.capability()
		if err != nil {
			return nil, nil, err
		}
		return nil, ac.RenounceRole(ctx, caller, id, variant, access), nil

	case ActionGrantCreateRole:
		account, err := args.account("account")
		if err != nil {
			return nil, nil, err
		}
		return nil, ac.GrantCreateRole(ctx, caller, account), nil

	case ActionAddEntry:
		in, err := args.entryInput()
		if err != nil {
			return nil, nil, err
		}
		id, opErr := l.AddEntry(ctx, caller, in)
		if opErr != nil {
			return nil, opErr, nil
		}
		if step.Save != "" {
			if _, dup := h.saved[step.Save]; dup {
				return nil, nil, fmt.Errorf("save: name %q already used", step.Save)
			}
			h.saved[step.Save] = id
			h.symbols[id] = "$" + step.Save
		}
		return ir.IRObject{"id": ir.IRString(h.symbol(id))}, nil, nil

	case ActionGetEntry:
		id, err := args.bytes32("id", true)
		if err != nil {
			return nil, nil, err
		}
		rec, opErr := l.GetEntry(ctx, caller, id)
		if opErr != nil {
			return nil, opErr, nil
		}
		return h.renderRecord(rec), nil, nil

	case ActionGetLatest:
		key, err := args.str("key", true)
		if err != nil {
			return nil, nil, err
		}
		rec, opErr := l.GetLatest(ctx, caller, key)
		if opErr != nil {
			return nil, opErr, nil
		}
		return h.renderRecord(rec), nil, nil

	case ActionHistory:
		key, err := args.str("key", true)
		if err != nil {
			return nil, nil, err
		}
		records, opErr := l.History(ctx, caller, key)
		if opErr != nil {
			return nil, opErr, nil
		}
		return ir.IRObject{"ids": h.symbolList(records)}, nil, nil

	case ActionKeyInfo:
		key, err := args.str("key", true)
		if err != nil {
			return nil, nil, err
		}
		idx, opErr := l.KeyInfo(ctx, key)
		if opErr != nil {
			return nil, opErr, nil
		}
		return h.renderKeyIndex(idx), nil, nil

	case ActionCount:
		n, opErr := l.Count(ctx)
		if opErr != nil {
			return nil, opErr, nil
		}
		return ir.IRObject{"count": ir.IRInt(int64(n))}, nil, nil

	case ActionHasRole:
		account, err := args.account("account")
		if err != nil {
			return nil, nil, err
		}
		id, variant, access, err := args.capability()
		if err != nil {
			return nil, nil, err
		}
		held, opErr := ac.HasRole(ctx, account, id, variant, access)
		if opErr != nil {
			return nil, opErr, nil
		}
		return ir.IRObject{"held": ir.IRBool(held)}, nil, nil

	case ActionHasAnyRoleFor:
		account, err := args.account("account")
		if err != nil {
			return nil, nil, err
		}
		entity, resource, org, err := args.triple()
		if err != nil {
			return nil, nil, err
		}
		access, err := args.access("access")
		if err != nil {
			return nil, nil, err
		}
		held, opErr := ac.HasAnyRoleFor(ctx, account, entity, resource, org, access)
		if opErr != nil {
			return nil, opErr, nil
		}
		return ir.IRObject{"held": ir.IRBool(held)}, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown operation %q", step.Invoke)
}

// classify maps an operation error to an outcome case.
func classify(err error) string {
	switch {
	case err == nil:
		return CaseOK
	case access.IsAuthorizationError(err):
		return CaseUnauthorized
	case ledger.IsBudgetError(err):
		return CaseBudgetExceeded
	default:
		return CaseError
	}
}

// checkExpect compares an outcome with the step's expect clause. A step
// without one must succeed. Returns "" on match.
func checkExpect(step FlowStep, out outcome) string {
	wantCase := CaseOK
	var wantResult map[string]interface{}
	if step.Expect != nil {
		wantCase = step.Expect.Case
		wantResult = step.Expect.Result
	}

	if out.Case != wantCase {
		if out.Err != nil {
			return fmt.Sprintf("expected case %q, got %q (%v)", wantCase, out.Case, out.Err)
		}
		return fmt.Sprintf("expected case %q, got %q", wantCase, out.Case)
	}

	if len(wantResult) > 0 {
		expected, err := convertArgsToIRObject(wantResult)
		if err != nil {
			return fmt.Sprintf("expected result: %v", err)
		}
		if msg := subsetMismatch(out.Result, expected); msg != "" {
			return msg
		}
	}
	return ""
}
