// Package logrus adapts a *logrus.Entry to stalecache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/stalecache"
)

var _ stalecache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New returns an adapter tagging every entry with component=stalecache.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "stalecache")}
}

func (l LogrusLogger) Debug(msg string, f stalecache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f stalecache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f stalecache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f stalecache.Fields) { l.with(f).Error(msg) }

// with moves an error under "err" to logrus' own error key.
func (l LogrusLogger) with(f stalecache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			fields[logrus.ErrorKey] = err
			continue
		}
		fields[k] = v
	}
	return l.E.WithFields(fields)
}
