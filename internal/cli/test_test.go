package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

const passingScenario = `
name: cli_pass
description: "Counts an empty ledger"
accounts:
  admin: "0x0000000000000000000000000000000000000001"
admin: admin
flow:
  - invoke: count
    caller: admin
    args: {}
    expect:
      case: ok
      result: { count: 0 }
assertions:
  - type: count
    count: 0
`

const failingScenario = `
name: cli_fail
description: "Expects a record that was never written"
accounts:
  admin: "0x0000000000000000000000000000000000000001"
admin: admin
flow:
  - invoke: count
    caller: admin
    args: {}
assertions:
  - type: count
    count: 1
`

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	return executeTestWith(t, &RootOptions{Format: format}, args...)
}

func executeTestWith(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := executeTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := executeTest(t, "text", harnessScenarios, "--golden-dir", harnessGolden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ end_to_end")
	assert.Contains(t, out, "✓ revocation")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandHarnessScenariosJSON(t *testing.T) {
	out, err := executeTest(t, "json", harnessScenarios, "--golden-dir", harnessGolden, "--filter", "end_*")
	require.NoError(t, err, out)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 1, response.Data.Total)
	assert.Equal(t, 1, response.Data.Passed)
	assert.Equal(t, "end_to_end", response.Data.Scenarios[0].Name)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ cli_pass")
	assert.Contains(t, out, "✗ cli_fail")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nflow: [\n")

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err, out)

	goldenPath := filepath.Join(dir, "golden", "cli_pass.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"cli_pass"`)

	out, err = executeTest(t, "text", dir)
	require.NoError(t, err, out)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"cli_pass","trace":[]}`), 0644))
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

const gatedReadScenario = `
name: cli_gated
description: "A reader without READ is refused once reads are gated"
accounts:
  admin: "0x0000000000000000000000000000000000000001"
  issuer: "0x000000000000000000000000000000000000000a"
  reader: "0x000000000000000000000000000000000000000b"
admin: admin
setup:
  - invoke: create_role
    caller: admin
    args: { id: acme, variant: ORGANIZATION }
  - invoke: grant_role
    caller: admin
    args: { account: admin, id: acme, variant: ORGANIZATION, access: ADMIN }
  - invoke: grant_role
    caller: admin
    args: { account: issuer, id: acme, variant: ORGANIZATION, access: WRITE }
flow:
  - invoke: add_entry
    caller: issuer
    args: { key: k, organization: acme, ref: a }
  - invoke: get_latest
    caller: reader
    args: { key: k }
    expect:
      case: unauthorized
assertions:
  - type: count
    count: 1
`

func TestTestCommandConfigApplied(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "gated.yaml", gatedReadScenario)

	_, err := executeTest(t, "text", dir)
	require.Error(t, err, "reads are open by default")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	cfgPath := filepath.Join(t.TempDir(), "compliance.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`read_policy: "gated"`+"\n"), 0o644))

	_, err = executeTestWith(t, &RootOptions{Format: "text", Config: cfgPath}, dir)
	require.NoError(t, err)
}

func TestTestCommandInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "compliance.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`max_id_attempts: 0`+"\n"), 0o644))

	_, err := executeTestWith(t, &RootOptions{Format: "text", Config: cfgPath}, harnessScenarios)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestHelpText(t *testing.T) {
	out, err := executeTest(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "--golden-dir")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "grant-admin.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "grant-write.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "append.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "grant-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		goldenDir string
		input     string
		name      string
		expected  string
	}{
		{"", "/path/to/scenario.yaml", "scenario", "/path/to/golden/scenario.golden"},
		{"", "scenarios/test.yml", "renamed", "scenarios/golden/renamed.golden"},
		{"fixtures", "scenarios/test.yaml", "test", "fixtures/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.goldenDir, tc.input, tc.name))
	}
}
