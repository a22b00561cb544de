// Package loadtest drives a running chartrank service over HTTP: it
// registers users, submits skills concurrently and checks that the
// leaderboard, per-user ranks and stored totals agree.
package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/chartrank/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated. The returned
// file must be closed by the caller.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "load_log_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`chartrank load tool
===================

Registers users against a running chartrank service, submits skill records
for every visible chart difficulty and verifies the resulting rankings.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -users int
        Number of users to register (default 200)
  -submissions int
        Number of skill submissions to send (default 10000)
  -max-score int
        Upper bound of generated scores (default 1000000)
  -top int
        Number of top entries to fetch from leaderboard (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for submissions (default: generated_submissions_TIMESTAMP.json)
  -log string
        Log file for test output (default: load_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Seed the catalog first, then load with defaults
  go run ./cmd/chart-import -file charts.yaml
  go run ./cmd/loadtest

  # Heavier run against another instance
  go run ./cmd/loadtest -users 2000 -submissions 50000 -workers 16 -url http://localhost:8080
`)
}
