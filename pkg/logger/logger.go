// Package logger wraps logrus with the small, opinionated call surface
// the teacher's hand-rolled color logger offered (Debug/Info/Warn/Error/
// Success/Fatal plus Section/Banner for startup output), so call sites
// elsewhere in this module read the same way they did in the teacher
// repo — only the backend changed, from the standard log package to
// structured logrus fields.
package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin facade over a *logrus.Logger.
type Logger struct {
	base *logrus.Logger
}

var defaultLogger = New()

// New creates a Logger with logrus's default text formatter, colors
// enabled automatically when attached to a terminal.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{base: l}
}

// Default returns the package-level logger used by the free functions
// below (Debug, Info, ...), mirroring the teacher's package-level
// defaultLogger.
func Default() *Logger { return defaultLogger }

// SetVerbose maps the CLI's --verbose flag (spec.md §6) onto logrus's
// debug level, the way the teacher's SetLevel(LevelDebug) did.
func (l *Logger) SetVerbose(verbose bool) {
	if verbose {
		l.base.SetLevel(logrus.DebugLevel)
	} else {
		l.base.SetLevel(logrus.InfoLevel)
	}
}

// WithFields returns an entry carrying structured fields — used for
// per-frame logging ("peer", "seq", "phase", "type") under --verbose.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.base.WithFields(fields)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.base.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.base.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.base.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.base.Errorf(format, args...) }

// Success logs at Info level with a result=success field — logrus has no
// native "success" level, so the teacher's extra taxonomy is layered on
// top of a plainer backend the same way the teacher's own Success()
// layered a green color over the standard log package.
func (l *Logger) Success(format string, args ...interface{}) {
	l.base.WithField("result", "success").Infof(format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.base.Fatalf(format, args...)
}

func SetVerbose(verbose bool)                    { defaultLogger.SetVerbose(verbose) }
func Debug(format string, args ...interface{})   { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})    { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})    { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{})   { defaultLogger.Error(format, args...) }
func Success(format string, args ...interface{}) { defaultLogger.Success(format, args...) }
func Fatal(format string, args ...interface{})   { defaultLogger.Fatal(format, args...) }

// Section prints a plain section header, unchanged in spirit from the
// teacher's Section — presentation output via fmt, not a log record.
func Section(title string) {
	border := "==============================================================="
	fmt.Printf("\n%s\n%s\n%s\n\n", border, title, border)
}

// Banner prints the startup banner.
func Banner(title, version string) {
	banner := `
 ____      _         ____           _                  _
|  _ \ ___ | | _____ |  _ \ _ __ ___ | |_ ___   ___ ___ | |
| |_) / _ \| |/ / _ \| |_) | '__/ _ \| __/ _ \ / __/ _ \| |
|  __/ (_) |   <  __/|  __/| | | (_) | || (_) | (_| (_) | |
|_|   \___/|_|\_\___||_|   |_|  \___/ \__\___/ \___\___/|_|
`
	fmt.Println(banner)
	fmt.Printf("%s -- version %s\n\n", title, version)
}
