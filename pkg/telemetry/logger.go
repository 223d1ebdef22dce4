package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with stackpilot-specific functionality.
// Besides leveled structured logging it carries the two raw output
// streams that shell command output is mirrored to as it arrives.
type Logger struct {
	zlog   zerolog.Logger
	out    io.Writer
	errOut io.Writer
}

// NewLogger creates a logger writing structured events to errOut as
// console lines and raw shell output to out/errOut directly.
func NewLogger(out, errOut io.Writer, level string) *Logger {
	writer := zerolog.ConsoleWriter{Out: errOut}
	zlog := zerolog.New(writer).With().Timestamp().Logger().Level(parseLogLevel(level))

	return &Logger{
		zlog:   zlog,
		out:    out,
		errOut: errOut,
	}
}

// NewTestLogger returns a logger that discards everything. Intended for
// tests that only care about command side effects.
func NewTestLogger() *Logger {
	return &Logger{
		zlog:   zerolog.Nop(),
		out:    io.Discard,
		errOut: io.Discard,
	}
}

// WithComponent creates a child logger for a specific component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", component).Logger(),
		out:    l.out,
		errOut: l.errOut,
	}
}

// WithRunID adds a run_id field to the logger.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("run_id", runID).Logger(),
		out:    l.out,
		errOut: l.errOut,
	}
}

// WithError adds error information to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Err(err).Logger(),
		out:    l.out,
		errOut: l.errOut,
	}
}

// Task logs a provisioning progress line.
func (l *Logger) Task(task string) {
	l.zlog.Info().Msg(task)
}

// ShellCommand logs the command about to be executed.
func (l *Logger) ShellCommand(cmd string) {
	l.zlog.Info().Str("cmd", cmd).Msg("run")
}

// ShellStdout forwards a chunk of subprocess stdout to the raw output
// stream. Chunks arrive as soon as the subprocess produces them.
func (l *Logger) ShellStdout(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	_, _ = l.out.Write(chunk)
	flush(l.out)
}

// ShellStderr forwards a chunk of subprocess stderr to the raw error
// stream.
func (l *Logger) ShellStderr(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	_, _ = l.errOut.Write(chunk)
	flush(l.errOut)
}

// StdoutStream returns an io.Writer that forwards writes through
// ShellStdout. Used to wire subprocess pipes directly to the logger.
func (l *Logger) StdoutStream() io.Writer {
	return writerFunc(l.ShellStdout)
}

// StderrStream returns an io.Writer that forwards writes through
// ShellStderr.
func (l *Logger) StderrStream() io.Writer {
	return writerFunc(l.ShellStderr)
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

// Debugf logs a formatted debug-level message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Warnf logs a formatted warning-level message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// Errorf logs a formatted error-level message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

type writerFunc func([]byte)

func (f writerFunc) Write(p []byte) (int, error) {
	f(p)
	return len(p), nil
}

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

func flush(w io.Writer) {
	switch v := w.(type) {
	case flusher:
		_ = v.Flush()
	case *os.File:
		// Terminal writes are unbuffered, nothing to do.
	case syncer:
		_ = v.Sync()
	}
}

// parseLogLevel converts a string log level to zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
