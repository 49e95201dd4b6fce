package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/compliance/internal/config"
	"github.com/roach88/compliance/internal/harness"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional CUE config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the compliance CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Compliance record store scenario verifier",
		Long: `Verify the compliance record store against documented scenarios.

Scenarios are YAML files that grant roles, append records and read them
back. Each run uses a fresh in-memory store; traces are compared against
golden files.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a CUE config file")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig returns the config named by --config, or the defaults.
// --verbose raises the log level to debug.
func (o *RootOptions) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.Config == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(o.Config)
	}
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds the logger for a command run from cfg.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	return logger, nil
}

// scenarioOptions returns the harness options every scenario run gets
// from cfg.
func scenarioOptions(cfg config.Config, logger *zap.Logger) ([]harness.Option, error) {
	ledgerOpts, err := cfg.LedgerOptions(logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return []harness.Option{
		harness.WithLogger(logger),
		harness.WithLedgerOptions(ledgerOpts...),
	}, nil
}
