// Package logging wires up the process-wide logrus logger shared by
// every component.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the root logger at levelName (a logrus level string such
// as "info" or "debug"; an unrecognized name falls back to Info,
// logged as a warning rather than failing startup).
func New(levelName string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
		l.Warnf("unrecognized log level %q, defaulting to info", levelName)
	}
	l.SetLevel(level)
	return l
}

// Component returns an entry tagged with a "component" field, the
// convention every package in this module uses to identify which
// pipeline stage emitted a log line.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
