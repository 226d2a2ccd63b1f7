// Package logging provides the structured logger shared by every package.
//
// Call sites use the slog style key/value convention:
//
//	logger.Info("user registered", "user_id", id, "email", email)
//
// The default implementation is backed by logrus. Packages that only need a
// logger depend on the Logger interface so tests can pass a Console or a
// buffer backed logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract used across the module.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Provider hands out named child loggers.
type Provider interface {
	GetLogger(name string) Logger
}

// Options configures a logrus backed logger.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// LogrusLogger adapts a logrus entry to Logger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// New creates a root logger.
func New(opts Options) *LogrusLogger {
	l := logrus.New()

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	switch strings.ToLower(opts.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// GetLogger returns a child logger tagged with the given component name.
func (l *LogrusLogger) GetLogger(name string) Logger {
	return &LogrusLogger{entry: l.entry.WithField("logger", name)}
}

// Writer exposes an io.Writer that logs each line at info level.
func (l *LogrusLogger) Writer() *io.PipeWriter {
	return l.entry.Writer()
}

func (l *LogrusLogger) Debug(format string, args ...any) {
	l.log(logrus.DebugLevel, format, args...)
}

func (l *LogrusLogger) Info(format string, args ...any) {
	l.log(logrus.InfoLevel, format, args...)
}

func (l *LogrusLogger) Warn(format string, args ...any) {
	l.log(logrus.WarnLevel, format, args...)
}

func (l *LogrusLogger) Error(format string, args ...any) {
	l.log(logrus.ErrorLevel, format, args...)
}

func (l *LogrusLogger) log(level logrus.Level, msg string, args ...any) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	l.entry.WithFields(toFields(args)).Log(level, msg)
}

// toFields turns key/value pairs into logrus fields. A trailing key
// without a value is stored under "!BADKEY" the same way slog does.
func toFields(args []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			continue
		}
		val := args[i+1]
		if err, isErr := val.(error); isErr {
			val = err.Error()
		}
		fields[key] = val
		i++
	}
	return fields
}

// Named returns a child logger when l supports it, otherwise l itself.
func Named(l Logger, name string) Logger {
	if l == nil {
		return Console(name)
	}
	if p, ok := l.(Provider); ok {
		return p.GetLogger(name)
	}
	return l
}

// Console returns a dependency free logger that prints to stdout.
func Console(prefix string) Logger {
	return consoleLogger{prefix: strings.ToUpper(prefix)}
}

type consoleLogger struct {
	prefix string
}

func (c consoleLogger) Debug(format string, args ...any) {
	c.print("DBG", format, args...)
}

func (c consoleLogger) Info(format string, args ...any) {
	c.print("INF", format, args...)
}

func (c consoleLogger) Warn(format string, args ...any) {
	c.print("WRN", format, args...)
}

func (c consoleLogger) Error(format string, args ...any) {
	c.print("ERR", format, args...)
}

func (c consoleLogger) print(level, msg string, args ...any) {
	var sb strings.Builder
	sb.WriteString("[" + level + "] " + c.prefix + " " + msg)
	for i := 0; i+1 < len(args); i += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", args[i], args[i+1]))
	}
	fmt.Println(sb.String())
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop discards every entry.
func Nop() Logger {
	return nopLogger{}
}
