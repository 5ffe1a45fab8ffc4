// Package obslog provides the prefixed stdlib loggers used across the
// payment core, mirroring the original SDK's get_logger(name) convention
// and the teacher repo's unadorned use of the standard log package.
package obslog

import (
	"log"
	"os"
)

// Logger is a thin, prefixed wrapper over *log.Logger.
type Logger struct {
	*log.Logger
}

// New returns a Logger writing to stderr with a "[name] " prefix.
func New(name string) *Logger {
	return &Logger{Logger: log.New(os.Stderr, "["+name+"] ", log.LstdFlags)}
}
