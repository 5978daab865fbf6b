// Package logging builds zap loggers and carries them in a context.
package logging

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const (
	FormatProduction  = "production"
	FormatDevelopment = "development"
)

type contextKey int

var loggerKey = contextKey(0)

var ErrNoLoggerInContext = errors.New("no logger in context")

// New creates a logger. The production format writes JSON lines, any other format writes console output.
// An invalid level falls back to info.
func New(level, format string, fields ...zap.Field) (*zap.Logger, error) {
	var config zap.Config
	if format == "" || format == FormatProduction {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.Level = ParseLevel(level)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(fields...), nil
}

func ParseLevel(level string) zap.AtomicLevel {
	if atom, err := zap.ParseAtomicLevel(level); err == nil && level != "" {
		return atom
	}
	return zap.NewAtomicLevelAt(zap.InfoLevel)
}

func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func LoggerFromContext(ctx context.Context) (*zap.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger, nil
	}

	return nil, ErrNoLoggerInContext
}

// LoggerFromContextOrNop returns the logger from the context, or a no-op logger.
func LoggerFromContextOrNop(ctx context.Context) *zap.Logger {
	if logger, err := LoggerFromContext(ctx); err == nil {
		return logger
	}
	return zap.NewNop()
}
