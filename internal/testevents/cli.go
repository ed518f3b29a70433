package testevents

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the global logger writing to both stdout and a
// file. If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) (logger.Logger, error) {
	if logFile == "" {
		logFile = "test_log_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return logger.Get().Named("test-events"), nil
}

// ShowHelp prints usage information for the test events tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Pulse Event Test Tool
=====================

Creates attempts over HTTP, streams SUBMIT and VALIDATE events through
/events and verifies the resulting leaderboard.

Usage:
  go run ./cmd/test-events [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -workout string    Workout id to attempt (default "wod-row")
  -scale string      Scale code (default "RX")
  -athletes string   Comma-separated athlete ids (default "ath-ana,ath-ben,ath-cy")
  -attempts int      Attempts per athlete (default 20)
  -max-reps int      Upper bound of generated rep counts (default 100)
  -validator string  Validator recorded on VALIDATE events (default "usr-coach")
  -workers int       Concurrent HTTP workers (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 30s)
  -drain duration    Time allowed for the workers to apply events (default 1m)
  -seed uint         Generator seed (default: current time)
  -log string        Log file (default: test_log_TIMESTAMP.log)
  -verbose           Enable debug logging
  -help              Show this help message

The workout must accept REPS results (AMRAP, EMOM, INTERVALS or BLOCKS).
Verification assumes the athletes have no earlier attempts on the workout,
so run it against a freshly seeded service.
`)
}
