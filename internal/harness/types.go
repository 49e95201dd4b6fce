package harness

import "github.com/roach88/compliance/internal/ir"

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one invocation or completion in a scenario trace.
type TraceEvent struct {
	Type       string      `json:"type"` // "invocation" or "completion"
	Action     string      `json:"action"`
	Caller     string      `json:"caller,omitempty"`
	Args       ir.IRObject `json:"args,omitempty"`
	OutputCase string      `json:"output_case,omitempty"`
	Result     ir.IRObject `json:"result,omitempty"`
	Seq        int64       `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and every
	// assertion matched.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(action, caller string, args ir.IRObject, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		Caller: caller,
		Args:   args,
		Seq:    seq,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(action, outputCase string, result ir.IRObject, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       EventCompletion,
		Action:     action,
		OutputCase: outputCase,
		Result:     result,
		Seq:        seq,
	})
}
