// Package logging configures the process logger: human-readable console
// output on stderr, optionally duplicated as structured JSON lines to a log
// file for later inspection of long bulk runs.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger. The returned closer flushes and closes the
// log file, if any.
func Setup(verbose bool, logFile string) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}

	var w io.Writer = console
	closer := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		w = zerolog.MultiLevelWriter(console, f)
		closer = func() { _ = f.Close() }
	}

	log := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return log, closer, nil
}
