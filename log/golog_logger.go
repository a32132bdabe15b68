package log

import (
	"github.com/kataras/golog"
)

// GologLogger implements Logger using kataras/golog.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger creates a golog-backed logger at the given level.
func NewGologLogger(level Level) *GologLogger {
	logger := golog.New()
	logger.SetLevel(gologLevel(level))
	return &GologLogger{logger: logger}
}

// NewGologLoggerFrom wraps an existing golog.Logger.
func NewGologLoggerFrom(logger *golog.Logger) *GologLogger {
	return &GologLogger{logger: logger}
}

// Debug logs debug messages.
func (l *GologLogger) Debug(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

// Info logs informational messages.
func (l *GologLogger) Info(format string, v ...any) {
	l.logger.Infof(format, v...)
}

// Warn logs warning messages.
func (l *GologLogger) Warn(format string, v ...any) {
	l.logger.Warnf(format, v...)
}

// Error logs error messages.
func (l *GologLogger) Error(format string, v ...any) {
	l.logger.Errorf(format, v...)
}

// SetLevel sets the log level.
func (l *GologLogger) SetLevel(level Level) {
	l.logger.SetLevel(gologLevel(level))
}

func gologLevel(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelNone:
		return "disable"
	default:
		return "info"
	}
}
