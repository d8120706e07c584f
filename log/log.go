// Package log centralizes logrus setup so every component logs through
// the same formatter and level, tagged with its own component field.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once showOnce
	base *logrus.Logger
)

type showOnce struct {
	sync.Once
}

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the verbosity of every logger returned by New.
func SetLevel(level logrus.Level) {
	root().SetLevel(level)
}

// New returns a logger entry pre-tagged with the owning component's name,
// mirroring how the teacher's p2p.Server stashes a *logrus.Entry per
// component (srv.log = srv.Config.Logger, falling back to its own default).
func New(component string) *logrus.Entry {
	return root().WithField("component", component)
}
