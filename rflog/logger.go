// Package rflog provides the thin logging accessor every long-running
// fit/transform operation in this module takes, mirroring the
// GetLogger/SetLogger pair the teacher's session type exposes around a
// *logrus.Entry.
package rflog

import "github.com/sirupsen/logrus"

// Logger wraps a *logrus.Entry so callers can attach per-run fields
// (component, run ID) without every package importing logrus directly.
type Logger struct {
	entry *logrus.Entry
}

// Default returns a Logger backed by logrus's standard logger.
func Default() *Logger {
	return &Logger{entry: logrus.NewEntry(logrus.StandardLogger())}
}

// NewEntry wraps an existing *logrus.Entry.
func NewEntry(e *logrus.Entry) *Logger {
	if e == nil {
		return Default()
	}
	return &Logger{entry: e}
}

// WithField returns a child Logger carrying an additional structured
// field, matching logrus.Entry.WithField's copy-on-write semantics.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Entry exposes the underlying *logrus.Entry for callers that need the
// full logrus API (e.g. to install a custom formatter or output).
func (l *Logger) Entry() *logrus.Entry { return l.entry }
