package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/compliance/internal/harness"
	"github.com/roach88/compliance/internal/ir"
)

func executeTrace(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceCommandText(t *testing.T) {
	path := filepath.Join(harnessScenarios, "end_to_end.yaml")

	out, err := executeTrace(t, &RootOptions{Format: "text"}, path)
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Scenario: end_to_end")
	assert.Contains(t, out, "Status: Pass")
	assert.Contains(t, out, "[7] INV add_entry by issuer")
	assert.Contains(t, out, "COMP add_entry unauthorized")
	assert.Contains(t, out, "Invocations:  12")
}

func TestTraceCommandVerbose(t *testing.T) {
	path := filepath.Join(harnessScenarios, "end_to_end.yaml")

	out, err := executeTrace(t, &RootOptions{Format: "text", Verbose: true}, path, "--action", "history")
	require.NoError(t, err)

	assert.Contains(t, out, "Args: {key=cert-1}")
	assert.Contains(t, out, "Result: {ids=[$second, $first]}")
	assert.NotContains(t, out, "INV add_entry")
}

func TestTraceCommandJSON(t *testing.T) {
	path := filepath.Join(harnessScenarios, "end_to_end.yaml")

	out, err := executeTrace(t, &RootOptions{Format: "json"}, path, "--action", "add_entry")
	require.NoError(t, err)

	var response struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.Pass)
	assert.Equal(t, 3, response.Data.Stats.Invocations)
	assert.Equal(t, 3, response.Data.Stats.Completions)
	assert.Equal(t, map[string]int{"ok": 2, "unauthorized": 1}, response.Data.Cases)
}

func TestTraceCommandMissingFile(t *testing.T) {
	_, err := executeTrace(t, &RootOptions{Format: "text"}, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBuildTimeline(t *testing.T) {
	trace := []harness.TraceEvent{
		{Type: harness.EventInvocation, Action: harness.ActionAddEntry, Caller: "issuer", Args: ir.IRObject{"key": ir.IRString("k")}, Seq: 1},
		{Type: harness.EventCompletion, Action: harness.ActionAddEntry, OutputCase: harness.CaseOK, Result: ir.IRObject{"id": ir.IRString("$a")}, Seq: 2},
		{Type: harness.EventInvocation, Action: harness.ActionCount, Caller: "issuer", Args: ir.IRObject{}, Seq: 3},
		{Type: harness.EventCompletion, Action: harness.ActionCount, OutputCase: harness.CaseOK, Result: ir.IRObject{"count": ir.IRInt(1)}, Seq: 4},
	}

	all := buildTimeline(trace, "")
	assert.Len(t, all, 4)

	filtered := buildTimeline(trace, harness.ActionAddEntry)
	require.Len(t, filtered, 2)
	assert.Equal(t, "issuer", filtered[0].Caller)
	assert.Equal(t, map[string]interface{}{"key": "k"}, filtered[0].Args)
	assert.Equal(t, map[string]interface{}{"id": "$a"}, filtered[1].Result)

	assert.Empty(t, buildTimeline(trace, harness.ActionHistory))
}

func TestIRValueToInterface(t *testing.T) {
	obj := ir.IRObject{
		"s": ir.IRString("x"),
		"n": ir.IRInt(7),
		"b": ir.IRBool(true),
		"a": ir.IRArray{ir.IRString("y")},
		"o": ir.IRObject{"k": ir.IRInt(1)},
	}

	assert.Equal(t, map[string]interface{}{
		"s": "x",
		"n": int64(7),
		"b": true,
		"a": []interface{}{"y"},
		"o": map[string]interface{}{"k": int64(1)},
	}, irObjectToMap(obj))
	assert.Nil(t, irObjectToMap(nil))
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "{}", formatArgs(nil))
	assert.Equal(t, "{a=1, b=[x, y], c={d=true}}", formatArgs(map[string]interface{}{
		"c": map[string]interface{}{"d": true},
		"a": int64(1),
		"b": []interface{}{"x", "y"},
	}))
}
