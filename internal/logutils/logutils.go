package logutils

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before InitLogger is called
// (at the default info level) so early startup errors can still be reported.
var Log = newLogger(logrus.InfoLevel)

type Logger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

func newLogger(level logrus.Level) *Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{logger: l, entry: logrus.NewEntry(l)}
}

// InitLogger sets the global log level. Invalid levels fall back to info.
func InitLogger(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
		parsed = logrus.InfoLevel
	}
	Log.logger.SetLevel(parsed)
	Log.Infof("Log level set to %v", parsed)
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger, entry: l.entry.WithError(err)}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger, entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{logger: l.logger, entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Debug(message string)              { l.entry.Debug(message) }

func (l *Logger) Infof(format string, args ...any) { l.entry.Infof(format, args...) }
func (l *Logger) Info(message string)              { l.entry.Info(message) }

func (l *Logger) Warnf(format string, args ...any) { l.entry.Warnf(format, args...) }
func (l *Logger) Warn(message string)              { l.entry.Warn(message) }

func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *Logger) Error(message string)              { l.entry.Error(message) }

func (l *Logger) Fatal(message string) { l.entry.Fatal(message) }
