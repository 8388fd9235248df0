// Package logging centralizes the storage core's diagnostic output. The
// teacher tags every notable decision with an ad hoc fmt.Printf prefix
// ("[BufferPool] HIT pageID=%d ..."); this package keeps that
// component-tagged texture but carries it on logrus structured fields
// instead of string interpolation, so pageID/lsn/dirty become queryable
// fields rather than substrings.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Component returns a logger pre-tagged with the owning subsystem, e.g.
// logging.Component("bufferpool").WithField("pageID", id).Debug("hit").
func Component(name string) *logrus.Entry {
	return base.WithField("component", name)
}

// SetLevel adjusts verbosity for the whole process; corectl's --log-level
// flag calls this once at startup.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}
