// Package procinit holds the process-startup wiring shared by both
// binaries: logrus formatter selection, text on a terminal and JSON
// otherwise, matching daemon/logger's "formatter fits the sink" split
// between its json-file and other drivers.
package procinit

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger builds the process-wide logger: a logrus.TextFormatter when
// stderr is a terminal, a logrus.JSONFormatter otherwise (e.g. piped to a
// log collector, a systemd journal, a file).
func Logger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	if isTerminal(os.Stderr) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
