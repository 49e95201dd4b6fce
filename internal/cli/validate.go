package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/compliance/internal/harness"
)

// ValidationError describes one scenario file that failed to load.
type ValidationError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Scenarios []string          `json:"scenarios"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenarios without running them",
		Long: `Validate scenario files without executing them.

Checks YAML syntax, unknown fields, operation names, outcome cases and
assertion shapes. Faster than test for authoring feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	files, err := findScenarioFiles(scenariosDir, "")
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), scenariosDir)

	result := ValidationResult{Scenarios: []string{}}
	seen := make(map[string]string, len(files))
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{File: file, Message: err.Error()})
			continue
		}
		if prev, dup := seen[scenario.Name]; dup {
			result.Errors = append(result.Errors, ValidationError{
				File:    file,
				Message: fmt.Sprintf("scenario name %q already used by %s", scenario.Name, filepath.Base(prev)),
			})
			continue
		}
		seen[scenario.Name] = file
		result.Scenarios = append(result.Scenarios, scenario.Name)
		formatter.VerboseLog("Validated scenario: %s", scenario.Name)
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return formatter.Success(fmt.Sprintf("✓ %d scenario(s) valid", len(result.Scenarios)), result)
}

// outputValidationErrors reports every invalid file and returns exit code 1.
func outputValidationErrors(f *OutputFormatter, result ValidationResult) error {
	msg := fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors))
	if f.Format == "json" {
		if err := f.Error(ErrCodeInvalidScenario, msg, result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "✗ %s\n  %s\n", e.File, e.Message)
	}
	return NewExitError(ExitFailure, msg)
}
