package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a verification scenario against a fresh ledger.
// Steps invoke real ledger and access operations; expect clauses and
// assertions check what actually happened.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts maps aliases used in the scenario to hex addresses.
	Accounts map[string]string `yaml:"accounts"`

	// Admin is the account (alias or address) bootstrapped with the
	// default admin role and CREATE_ROLE before any step runs.
	Admin string `yaml:"admin"`

	// ReadPolicy is "open" (default) or "gated".
	ReadPolicy string `yaml:"read_policy,omitempty"`

	// MaxIDAttempts overrides the identifier attempt budget.
	MaxIDAttempts int `yaml:"max_id_attempts,omitempty"`

	// ClockStart seeds the logical timestamp clock. The first record gets
	// ClockStart+1. Defaults to DefaultClockStart.
	ClockStart int64 `yaml:"clock_start,omitempty"`

	// Setup steps run before the flow and must all succeed.
	Setup []FlowStep `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and ledger state.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultClockStart is the timestamp clock seed when a scenario sets none.
const DefaultClockStart = 1700000000

// FlowStep invokes one operation.
type FlowStep struct {
	// Invoke names the operation (see the Action constants).
	Invoke string `yaml:"invoke"`

	// Caller is the acting account, alias or address.
	Caller string `yaml:"caller"`

	// Args contains the operation arguments. Identifiers are plain
	// strings (left-aligned into 32 bytes), 0x-hex, or $name references
	// to ids saved by earlier steps.
	Args map[string]interface{} `yaml:"args"`

	// Expect specifies the expected outcome. If nil, the step must
	// succeed with case "ok".
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Save names the id returned by add_entry so later steps can refer to
	// it as $name.
	Save string `yaml:"save,omitempty"`
}

// ExpectClause specifies expected step outcome.
type ExpectClause struct {
	// Case is the expected outcome: ok, unauthorized, budget_exceeded or
	// error.
	Case string `yaml:"case"`

	// Result contains expected result field values.
	// This is a subset match - only specified fields are validated.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates trace or final ledger state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": action appears in trace with args
	// - "trace_order": actions appear in order
	// - "trace_count": action appears exactly N times
	// - "latest": head record of Key matches Expect
	// - "history": records of Key, newest first, have IDs
	// - "count": global record counter equals Count
	// - "role": Account holds (ID, Variant, Access) iff Held
	Type string `yaml:"type"`

	// Action is the operation name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected arguments (trace_contains), subset match.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Count is the expected number (trace_count, count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected operation order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Key selects a record list (latest, history).
	Key string `yaml:"key,omitempty"`

	// Expect contains expected record fields (latest), subset match.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// IDs are the expected record ids, newest first (history).
	IDs []string `yaml:"ids,omitempty"`

	// Role assertion fields.
	Account string `yaml:"account,omitempty"`
	ID      string `yaml:"id,omitempty"`
	Variant string `yaml:"variant,omitempty"`
	Access  string `yaml:"access,omitempty"`
	Held    *bool  `yaml:"held,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertLatest        = "latest"
	AssertHistory       = "history"
	AssertCount         = "count"
	AssertRole          = "role"
)

// Operation names accepted in FlowStep.Invoke.
const (
	ActionCreateRole      = "create_role"
	ActionGrantRole       = "grant_role"
	ActionRevokeRole      = "revoke_role"
	ActionRenounceRole    = "renounce_role"
	ActionGrantCreateRole = "grant_create_role"
	ActionAddEntry        = "add_entry"
	ActionGetEntry        = "get_entry"
	ActionGetLatest       = "get_latest"
	ActionHistory         = "history"
	ActionKeyInfo         = "key_info"
	ActionCount           = "count"
	ActionHasRole         = "has_role"
	ActionHasAnyRoleFor   = "has_any_role_for"
)

var knownActions = map[string]bool{
	ActionCreateRole:      true,
	ActionGrantRole:       true,
	ActionRevokeRole:      true,
	ActionRenounceRole:    true,
	ActionGrantCreateRole: true,
	ActionAddEntry:        true,
	ActionGetEntry:        true,
	ActionGetLatest:       true,
	ActionHistory:         true,
	ActionKeyInfo:         true,
	ActionCount:           true,
	ActionHasRole:         true,
	ActionHasAnyRoleFor:   true,
}

// Outcome cases.
const (
	CaseOK             = "ok"
	CaseUnauthorized   = "unauthorized"
	CaseBudgetExceeded = "budget_exceeded"
	CaseError          = "error"
)

var knownCases = map[string]bool{
	CaseOK:             true,
	CaseUnauthorized:   true,
	CaseBudgetExceeded: true,
	CaseError:          true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML held in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Admin == "" {
		return fmt.Errorf("admin is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.MaxIDAttempts < 0 {
		return fmt.Errorf("max_id_attempts must be positive")
	}

	for alias := range s.Accounts {
		if strings.HasPrefix(alias, "0x") || strings.HasPrefix(alias, "$") {
			return fmt.Errorf("accounts: alias %q must not start with 0x or $", alias)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step FlowStep) error {
	if step.Invoke == "" {
		return fmt.Errorf("%s: invoke is required", where)
	}
	if !knownActions[step.Invoke] {
		return fmt.Errorf("%s: unknown operation %q", where, step.Invoke)
	}
	if step.Caller == "" {
		return fmt.Errorf("%s: caller is required", where)
	}
	if step.Args == nil {
		return fmt.Errorf("%s: args is required (use empty map if no args)", where)
	}
	if step.Expect != nil && !knownCases[step.Expect.Case] {
		return fmt.Errorf("%s.expect: unknown case %q", where, step.Expect.Case)
	}
	if step.Save != "" && step.Invoke != ActionAddEntry {
		return fmt.Errorf("%s: save is only valid on %s", where, ActionAddEntry)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertLatest:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for latest", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for latest", index)
		}
	case AssertHistory:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for history", index)
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRole:
		if a.Account == "" || a.ID == "" || a.Variant == "" || a.Access == "" {
			return fmt.Errorf("assertions[%d]: account, id, variant and access are required for role", index)
		}
		if a.Held == nil {
			return fmt.Errorf("assertions[%d]: held is required for role", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
