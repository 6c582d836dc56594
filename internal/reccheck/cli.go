package reccheck

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/sessionrec/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger, writing to stdout and, when
// logFile is set, to that file too.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the check tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Session Recommendation Check Tool
=================================

Requests recommendations for every visitor of a running service and checks
that each result holds the ranking invariants: unique session ids, scores in
[0,1], descending order, filtered list drawn from the raw list, and counts
matching the lists.

Usage:
  rec-check [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -limit int         Visitors to check, 0 for all (default 0)
  -min-score float   min_score sent with each request (default 0)
  -max int           max sent with each request (default 10)
  -use-llm           Ask for LLM filtering
  -workers int       Concurrent requests (default 8)
  -timeout duration  HTTP request timeout (default 60s)
  -output string     Write a JSON report of every outcome
  -log string        Also write logs to this file
  -verbose           Log every violation
  -help              Show this help message

Exit status is 1 when the service is unreachable or any invariant is broken.
`)
}
