package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/sessionrec/internal/reccheck"
)

// Default configuration constants.
const (
	defaultMax         = 10
	defaultWorkers     = 8
	defaultTimeout     = 60 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		limit      = flag.Int("limit", 0, "Number of visitors to check, 0 for all")
		minScore   = flag.Float64("min-score", 0, "min_score sent with each request")
		maxRecs    = flag.Int("max", defaultMax, "max sent with each request")
		useLLM     = flag.Bool("use-llm", false, "Ask for LLM filtering")
		workers    = flag.Int("workers", defaultWorkers, "Number of concurrent requests")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write a JSON report of every outcome")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Log every violation")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		reccheck.ShowHelp()
		return 0
	}

	if err := reccheck.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &reccheck.Config{
		BaseURL:    *baseURL,
		Limit:      *limit,
		MinScore:   *minScore,
		Max:        *maxRecs,
		UseLLM:     *useLLM,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, _, err := reccheck.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Check failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
