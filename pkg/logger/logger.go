package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a process-wide zap.Logger for the given level name
// ("debug", "info", "warn", "error") and encoding ("json" or "console").
// Construction happens once in cmd/signal/main.go; the logger is then
// passed down explicitly rather than reached for as a package global.
func New(level, format string) (*zap.Logger, error) {
	var zlevel zapcore.Level
	if err := zlevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zlevel)

	return cfg.Build()
}
