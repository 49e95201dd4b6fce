package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/compliance/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s by %s %v\n", event.Seq, event.Action, event.Caller, event.Args)
			} else {
				fmt.Fprintf(&buf, "  [%d]   -> %s %v\n", event.Seq, event.OutputCase, event.Result)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains an invocation matching
// the specified action and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := convertArgsToIRObject(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains args: %w", err)
	}

	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			if subsetMismatch(event.Args, expected) == "" {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Find first position of each expected action
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		for _, expectedAction := range assertion.Actions {
			if event.Action == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertLatest reads the head record of a key straight from the store,
// bypassing the read policy, and matches it against the expected fields.
func (h *Harness) assertLatest(ctx context.Context, assertion Assertion) error {
	idx, err := h.store.ReadKeyIndex(ctx, assertion.Key)
	if err != nil {
		return err
	}
	rec, err := h.store.ReadRecord(ctx, idx.Head)
	if err != nil {
		return err
	}
	if !idx.Exists {
		rec = ir.Record{}
	}

	expected, err := convertArgsToIRObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("latest expect: %w", err)
	}
	if msg := subsetMismatch(h.renderRecord(rec), expected); msg != "" {
		return &AssertionError{
			Type:     AssertLatest,
			Expected: fmt.Sprintf("head of %q matches %v", assertion.Key, assertion.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertHistory walks previous links from the head of a key and compares
// the visited ids with the expected list.
func (h *Harness) assertHistory(ctx context.Context, assertion Assertion) error {
	idx, err := h.store.ReadKeyIndex(ctx, assertion.Key)
	if err != nil {
		return err
	}

	actual := []string{}
	if idx.Exists {
		next := idx.Head
		for uint64(len(actual)) <= idx.Length {
			rec, err := h.store.ReadRecord(ctx, next)
			if err != nil {
				return err
			}
			if !rec.Exists {
				break
			}
			actual = append(actual, h.symbol(rec.ID))
			next = rec.Previous
		}
	}

	expected := assertion.IDs
	if expected == nil {
		expected = []string{}
	}
	if !reflect.DeepEqual(actual, expected) {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("history of %q = %v", assertion.Key, expected),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

func (h *Harness) assertCount(ctx context.Context, assertion Assertion) error {
	n, err := h.store.ReadRecordCount(ctx)
	if err != nil {
		return err
	}
	if n != uint64(assertion.Count) {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d records", assertion.Count),
			Actual:   fmt.Sprintf("%d records", n),
		}
	}
	return nil
}

func (h *Harness) assertRole(ctx context.Context, assertion Assertion) error {
	account, err := h.account(assertion.Account)
	if err != nil {
		return err
	}
	id, err := h.identifier(assertion.ID)
	if err != nil {
		return err
	}
	variant, err := ir.ParseRoleVariant(assertion.Variant)
	if err != nil {
		return err
	}
	access, err := ir.ParseRoleAccess(assertion.Access)
	if err != nil {
		return err
	}

	held, err := h.ledger.Access().HasRole(ctx, account, id, variant, access)
	if err != nil {
		return err
	}
	if held != *assertion.Held {
		return &AssertionError{
			Type:     AssertRole,
			Expected: fmt.Sprintf("%s holds %s on %s %s: %t", assertion.Account, access, variant, assertion.ID, *assertion.Held),
			Actual:   fmt.Sprintf("%t", held),
		}
	}
	return nil
}

// subsetMismatch checks that actual contains every field of expected with
// an equal value. Returns "" on match, otherwise a description of the
// first mismatch in key order.
func subsetMismatch(actual, expected ir.IRObject) string {
	for _, key := range expected.SortedKeys() {
		actualVal, ok := actual[key]
		if !ok {
			return fmt.Sprintf("field %q missing from %v", key, actual)
		}
		if !reflect.DeepEqual(actualVal, expected[key]) {
			return fmt.Sprintf("field %q = %v, want %v", key, actualVal, expected[key])
		}
	}
	return ""
}

// evaluateAssertions evaluates all assertions against the trace and the
// final ledger state. Returns a message per failed assertion.
func (h *Harness) evaluateAssertions(ctx context.Context, trace []TraceEvent, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(trace, assertion)
		case AssertLatest:
			err = h.assertLatest(ctx, assertion)
		case AssertHistory:
			err = h.assertHistory(ctx, assertion)
		case AssertCount:
			err = h.assertCount(ctx, assertion)
		case AssertRole:
			err = h.assertRole(ctx, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errors
}
