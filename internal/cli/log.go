// Package cli implements the rody command-line interface.
//
// The CLI wraps the simulation pipeline in cobra commands. Scenarios come
// from TOML files and can be overridden flag by flag; results stream to
// stdout in one of the sink formats or render as a table.
//
// # Commands
//
// The main commands are:
//   - run: Simulate a scenario and print the sampled channels
//   - scenario: Write or check TOML scenario files
//   - play: Step through a simulation interactively
//   - serve: Expose runs over HTTP
//   - cache: Manage the result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Logs and
// status lines go to stderr so that stdout carries only simulation output.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Simulated 1000 steps (12ms)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
