package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/chartrank/internal/loadtest"
	"github.com/okian/chartrank/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers       = 200
	defaultSubmissions = 10000
	defaultMaxScore    = 1_000_000
	defaultTopN        = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users       = flag.Int("users", defaultUsers, "Number of users to register")
		submissions = flag.Int("submissions", defaultSubmissions, "Number of skill submissions to send")
		maxScore    = flag.Int("max-score", defaultMaxScore, "Upper bound of generated scores")
		topN        = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Output file for submissions (default: generated_submissions_TIMESTAMP.json)")
		logFile     = flag.String("log", "", "Log file for test output (default: load_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	closer, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:     *baseURL,
		Users:       *users,
		Submissions: *submissions,
		TopN:        *topN,
		Workers:     *workers,
		MaxScore:    *maxScore,
		Timeout:     *timeout,
		OutputFile:  *outputFile,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if _, err := loadtest.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		return
	}
}
