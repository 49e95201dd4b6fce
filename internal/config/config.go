// Package config loads compliance store configuration from CUE.
//
// A config file is a plain CUE struct unified against the embedded
// #Config schema, so unknown fields and out-of-range values are rejected
// and omitted fields take their schema defaults:
//
//	read_policy:     "gated"
//	max_id_attempts: 16
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/compliance/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded configuration.
type Config struct {
	ReadPolicy    string `json:"read_policy"`
	MaxIDAttempts int    `json:"max_id_attempts"`
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
}

// Default returns the schema defaults.
func Default() (Config, error) {
	return decode(nil, "")
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return decode(data, path)
}

// Parse validates CUE source held in memory. name is used in positions.
func Parse(src []byte, name string) (Config, error) {
	return decode(src, name)
}

func decode(src []byte, name string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(name))
		if err := user.Err(); err != nil {
			return Config{}, fmt.Errorf("parse config: %s", details(err))
		}
		value = value.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", details(err))
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// details renders every error of a CUE error list, with positions.
func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}

// NewLogger builds the zap logger described by LogLevel and LogFormat.
// Output goes to stderr.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// LedgerOptions translates the configuration into ledger options.
func (c Config) LedgerOptions(logger *zap.Logger) ([]ledger.Option, error) {
	policy, err := ledger.ParseReadPolicy(c.ReadPolicy)
	if err != nil {
		return nil, err
	}
	return []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithReadPolicy(policy),
		ledger.WithMaxIDAttempts(c.MaxIDAttempts),
	}, nil
}
