// Package logging builds the structured zap logger shared by the service and
// the CLI. There is no global logger; callers pass the returned logger down.
package logging

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputPath string `yaml:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig logs warnings and above to stderr as console text.
func DefaultConfig() Config {
	return Config{Level: "warn", Format: "console", OutputPath: "stderr"}
}

// New builds a logger from cfg. An unknown level falls back to info.
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	config.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		config.OutputPaths = []string{cfg.OutputPath}
		config.ErrorOutputPaths = []string{cfg.OutputPath}
	}

	return config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// ForOperation returns a child logger tagged with the operation name, the
// identifier it acts on and a fresh operation id.
func ForOperation(base *zap.Logger, op, id string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(
		zap.String("op", op),
		ID(id),
		zap.String("op_id", uuid.NewString()),
	)
}

// Field helpers for common fields.

func ID(id string) zap.Field {
	return zap.String("id", id)
}

func Mirror(m string) zap.Field {
	return zap.String("mirror", m)
}

func URL(u string) zap.Field {
	return zap.String("url", u)
}

func Path(p string) zap.Field {
	return zap.String("path", p)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}
