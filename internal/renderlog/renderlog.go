// Package renderlog implements core.Logger on top of logrus, the way the
// teacher's web.WebLogger implements it on top of a console channel: both
// are thin sinks that let engine code log through one small interface
// while the host process decides where those messages actually go.
package renderlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/df07/render-bridge-server/pkg/core"
)

// Logger implements core.Logger by writing to a logrus.Entry. Every
// request gets its own Logger carrying a request_id field so a single
// render's log lines can be grepped out of the shared stream.
type Logger struct {
	entry *logrus.Entry
}

// New wraps a bare *logrus.Logger with no request context; used for
// process-level logging (startup, shutdown) outside any single request.
func New(base *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(base)}
}

// NewRequestLogger creates a Logger scoped to one HTTP request, generating
// a fresh request ID and attaching it as a structured field.
func NewRequestLogger(base *logrus.Logger) *Logger {
	return &Logger{entry: base.WithField("request_id", uuid.NewString())}
}

// Printf implements core.Logger by routing the formatted message through
// logrus at Info level.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// RequestID returns the request_id field this logger was scoped to, or ""
// if it was not created with NewRequestLogger.
func (l *Logger) RequestID() string {
	if id, ok := l.entry.Data["request_id"].(string); ok {
		return id
	}
	return ""
}

var _ core.Logger = (*Logger)(nil)

type contextKey struct{}

// WithContext attaches a request-scoped Logger to ctx so it can be
// recovered further down the call stack (internal/pipeline pulls it back
// out to log engine-internal progress under the same request_id the HTTP
// layer used).
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext recovers the Logger attached by WithContext, or nil if ctx
// carries none.
func FromContext(ctx context.Context) *Logger {
	l, _ := ctx.Value(contextKey{}).(*Logger)
	return l
}
