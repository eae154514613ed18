// README: Shared logrus logger construction (JSON output, level from config).
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. Level falls back to info when the
// supplied string does not parse.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Discard returns a logger that swallows everything. Handy for tests and for
// services constructed without an explicit logger.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
