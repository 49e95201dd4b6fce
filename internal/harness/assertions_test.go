package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/compliance/internal/ir"
)

func invocation(action string, args ir.IRObject, seq int64) TraceEvent {
	return TraceEvent{Type: EventInvocation, Action: action, Caller: "admin", Args: args, Seq: seq}
}

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		invocation(ActionCreateRole, ir.IRObject{"id": ir.IRString("acme"), "variant": ir.IRString("ORGANIZATION")}, 1),
		{Type: EventCompletion, Action: ActionCreateRole, OutputCase: CaseOK, Seq: 2},
		invocation(ActionAddEntry, ir.IRObject{"key": ir.IRString("k"), "ref": ir.IRString("a")}, 3),
		{Type: EventCompletion, Action: ActionAddEntry, OutputCase: CaseOK, Result: ir.IRObject{"id": ir.IRString("$a")}, Seq: 4},
		invocation(ActionAddEntry, ir.IRObject{"key": ir.IRString("k"), "ref": ir.IRString("b")}, 5),
		{Type: EventCompletion, Action: ActionAddEntry, OutputCase: CaseOK, Result: ir.IRObject{"id": ir.IRString("$b")}, Seq: 6},
		invocation(ActionHistory, ir.IRObject{"key": ir.IRString("k")}, 7),
		{Type: EventCompletion, Action: ActionHistory, OutputCase: CaseOK, Seq: 8},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name   string
		action string
		args   map[string]interface{}
		found  bool
	}{
		{"no args", ActionAddEntry, nil, true},
		{"subset match", ActionAddEntry, map[string]interface{}{"ref": "b"}, true},
		{"full match", ActionAddEntry, map[string]interface{}{"key": "k", "ref": "a"}, true},
		{"wrong value", ActionAddEntry, map[string]interface{}{"ref": "c"}, false},
		{"extra field", ActionAddEntry, map[string]interface{}{"owner": "x"}, false},
		{"completion events ignored", ActionCount, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(trace, Assertion{Type: AssertTraceContains, Action: tt.action, Args: tt.args})
			if tt.found {
				assert.NoError(t, err)
			} else {
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertTraceContains, ae.Type)
			}
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionCreateRole, ActionHistory}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionCreateRole, ActionAddEntry, ActionHistory}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{ActionHistory, ActionAddEntry}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{ActionAddEntry, ActionRevokeRole}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: revoke_role")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionAddEntry, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionRevokeRole, Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: ActionAddEntry, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestSubsetMismatch(t *testing.T) {
	actual := ir.IRObject{
		"id":    ir.IRString("$a"),
		"nonce": ir.IRInt(1),
		"ids":   ir.IRArray{ir.IRString("$b"), ir.IRString("$a")},
	}

	assert.Empty(t, subsetMismatch(actual, ir.IRObject{}))
	assert.Empty(t, subsetMismatch(actual, ir.IRObject{"nonce": ir.IRInt(1)}))
	assert.Empty(t, subsetMismatch(actual, ir.IRObject{"ids": ir.IRArray{ir.IRString("$b"), ir.IRString("$a")}}))

	assert.Contains(t, subsetMismatch(actual, ir.IRObject{"nonce": ir.IRInt(2)}), `field "nonce"`)
	assert.Contains(t, subsetMismatch(actual, ir.IRObject{"nonce": ir.IRString("1")}), `field "nonce"`)
	assert.Contains(t, subsetMismatch(actual, ir.IRObject{"owner": ir.IRString("x")}), "missing")
	assert.Contains(t, subsetMismatch(actual, ir.IRObject{"ids": ir.IRArray{ir.IRString("$a")}}), `field "ids"`)
	assert.NotEmpty(t, subsetMismatch(nil, ir.IRObject{"id": ir.IRString("$a")}))
}

func TestEvaluateAssertions_TraceOnly(t *testing.T) {
	h := &Harness{}
	trace := sampleTrace()

	errs := h.evaluateAssertions(context.Background(), trace, []Assertion{
		{Type: AssertTraceContains, Action: ActionHistory},
		{Type: AssertTraceCount, Action: ActionAddEntry, Count: 2},
	})
	assert.Empty(t, errs)

	errs = h.evaluateAssertions(context.Background(), trace, []Assertion{
		{Type: AssertTraceCount, Action: ActionAddEntry, Count: 1},
		{Type: AssertTraceContains, Action: ActionHistory},
		{Type: "final_state"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[0]")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "final_state"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of add_entry",
		Actual:   "1 occurrences",
		Trace:    sampleTrace()[:4],
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of add_entry")
	assert.Contains(t, msg, "Actual: 1 occurrences")
	assert.Contains(t, msg, "[1] create_role by admin")
	assert.Contains(t, msg, "[4]   -> ok")
}

func TestRenderLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    ir.Bytes32
		expected string
	}{
		{"zero", ir.Bytes32{}, ""},
		{"text", mustLabel(t, "acme"), "acme"},
		{"hex-looking text", mustLabel(t, "0xabc"), mustLabel(t, "0xabc").Hex()},
		{"reference-looking text", mustLabel(t, "$a"), mustLabel(t, "$a").Hex()},
		{"binary", ir.Bytes32{0: 0x01, 31: 0xff}, ir.Bytes32{0: 0x01, 31: 0xff}.Hex()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderLabel(tt.input))
		})
	}
}

func mustLabel(t *testing.T, s string) ir.Bytes32 {
	t.Helper()
	b, err := ir.StringToBytes32(s)
	require.NoError(t, err)
	return b
}
