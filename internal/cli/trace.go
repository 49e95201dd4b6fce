package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/compliance/internal/harness"
	"github.com/roach88/compliance/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Action string // optional - filter to one operation
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq        int64                  `json:"seq"`
	Type       string                 `json:"type"` // "invocation" or "completion"
	Action     string                 `json:"action"`
	Caller     string                 `json:"caller,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	OutputCase string                 `json:"output_case,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Scenario string         `json:"scenario"`
	Pass     bool           `json:"pass"`
	Errors   []string       `json:"errors,omitempty"`
	Timeline []TraceEvent   `json:"timeline"`
	Stats    TraceStats     `json:"stats"`
	Cases    map[string]int `json:"cases"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Invocations int `json:"invocations"`
	Completions int `json:"completions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Run one scenario and print its trace",
		Long: `Run a single scenario against a fresh store and print its trace.

The output includes:
- Timeline: every invocation and completion in order
- Cases: how many completions ended in each outcome case
- Stats: summary counts

Examples:
  compliance trace ./scenarios/end_to_end.yaml
  compliance trace ./scenarios/end_to_end.yaml --action add_entry
  compliance trace ./scenarios/end_to_end.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one operation")

	return cmd
}

func runTrace(opts *TraceOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runOpts, err := scenarioOptions(cfg, logger)
	if err != nil {
		return err
	}

	run, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	timeline := buildTimeline(run.Trace, opts.Action)
	result := TraceResult{
		Scenario: scenario.Name,
		Pass:     run.Pass,
		Errors:   run.Errors,
		Timeline: timeline,
		Cases:    map[string]int{},
	}
	for _, event := range timeline {
		result.Stats.TotalEvents++
		if event.Type == harness.EventInvocation {
			result.Stats.Invocations++
		} else {
			result.Stats.Completions++
			result.Cases[event.OutputCase]++
		}
	}

	if opts.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTimeline converts harness trace events to timeline events.
// When actionFilter is set, only events of that operation are kept.
func buildTimeline(trace []harness.TraceEvent, actionFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, event := range trace {
		if actionFilter != "" && event.Action != actionFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:        event.Seq,
			Type:       event.Type,
			Action:     event.Action,
			Caller:     event.Caller,
			Args:       irObjectToMap(event.Args),
			OutputCase: event.OutputCase,
			Result:     irObjectToMap(event.Result),
		})
	}
	return timeline
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]interface{} {
	if obj == nil {
		return nil
	}

	result := make(map[string]interface{})
	for k, v := range obj {
		result[k] = irValueToInterface(v)
	}
	return result
}

// irValueToInterface converts an ir.IRValue to a plain interface{}.
func irValueToInterface(v ir.IRValue) interface{} {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		result := make([]interface{}, len(val))
		for i, elem := range val {
			result[i] = irValueToInterface(elem)
		}
		return result
	case ir.IRObject:
		return irObjectToMap(val)
	default:
		return nil
	}
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Scenario: %s\n", result.Scenario)
	fmt.Fprintf(w, "Status: %s\n", passStatus(result.Pass))
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Cases ===")
	cases := make([]string, 0, len(result.Cases))
	for c := range result.Cases {
		cases = append(cases, c)
	}
	sort.Strings(cases)
	for _, c := range cases {
		fmt.Fprintf(w, "  %-16s %d\n", c+":", result.Cases[c])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Invocations:  %d\n", result.Stats.Invocations)
	fmt.Fprintf(w, "  Completions:  %d\n", result.Stats.Completions)
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Type {
	case harness.EventInvocation:
		fmt.Fprintf(w, "  [%d] INV %s by %s\n", event.Seq, event.Action, event.Caller)
		if verbose && len(event.Args) > 0 {
			fmt.Fprintf(w, "       Args: %s\n", formatArgs(event.Args))
		}

	case harness.EventCompletion:
		fmt.Fprintf(w, "  [%d] COMP %s %s\n", event.Seq, event.Action, event.OutputCase)
		if verbose && len(event.Result) > 0 {
			fmt.Fprintf(w, "       Result: %s\n", formatArgs(event.Result))
		}
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return formatArgs(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

func passStatus(pass bool) string {
	if pass {
		return "Pass"
	}
	return "Fail"
}
