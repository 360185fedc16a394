// Package logger wraps zap for the workgenio process.
//
// A logger travels in the context. Code that logs asks for one scoped to its
// component, and gets the operation ids of the context attached:
//
//	log := logger.For(ctx, "numbering")
//	log.Infow("invoice counter moved", "year", year)
package logger

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "workgenio/internal/core/context"
)

// Logger is a zap.SugaredLogger bound to a set of fields.
type Logger struct {
	*zap.SugaredLogger
}

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoding, colored levels
	OutputPaths []string
}

// New builds a logger. Every entry carries service=workgenio.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.InitialFields = map[string]any{"service": "workgenio"}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

var fallback atomic.Pointer[Logger]

// SetDefault sets the logger used when a context carries none.
func SetDefault(l *Logger) {
	fallback.Store(l)
}

// Default returns the logger set by SetDefault, or a no-op logger.
func Default() *Logger {
	if l := fallback.Load(); l != nil {
		return l
	}
	return NewNop()
}

// With adds key-value pairs to logger.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l.SugaredLogger.With(keysAndValues...)}
}

// WithComponent names the part of the system writing the entries.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

type loggerKey struct{}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger of ctx (or Default) with the operation ids
// of ctx attached.
func FromContext(ctx context.Context) *Logger {
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	if !ok {
		l = Default()
	}
	if tc := appctx.GetTrace(ctx); tc != nil {
		l = l.With("trace_id", tc.TraceID, "request_id", tc.RequestID, "origin", tc.Origin)
	}
	return l
}

// For is FromContext scoped to component.
func For(ctx context.Context, component string) *Logger {
	return FromContext(ctx).WithComponent(component)
}
