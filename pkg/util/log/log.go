package log

import (
	"io"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
)

// Logger is the process wide go-kit logger. Components take their logger via
// their constructors; this one is only used by main before the config is loaded.
var Logger = kitlog.NewNopLogger()

// InitLogger initialises the global gokit logger writing to stderr and returns that logger.
func InitLogger(logFormat string, logLevel dslog.Level) kitlog.Logger {
	return InitLoggerWithWriter(os.Stderr, logFormat, logLevel)
}

// InitLoggerWithWriter is InitLogger with an explicit destination.
func InitLoggerWithWriter(w io.Writer, logFormat string, logLevel dslog.Level) kitlog.Logger {
	writer := kitlog.NewSyncWriter(w)
	logger := dslog.NewGoKitWithWriter(logFormat, writer)

	// use UTC timestamps and skip 5 stack frames.
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5))

	// Must put the level filter last for efficiency.
	logger = level.NewFilter(logger, logLevel.Option)

	Logger = logger
	return logger
}
