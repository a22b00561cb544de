package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/chartrank/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes the complete load run and returns its statistics. Totals are
// written synchronously by the service, so rankings are read as soon as
// the submissions finish.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting chartrank load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("submissions", config.Submissions),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Wait for the service
	if err := waitForService(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Discover scoring units
	units, err := discoverUnits(ctx, client, stats)
	if err != nil {
		return stats, err
	}

	// Step 3: Register users
	users := generateUsers(config.Users)
	if err := registerUsers(ctx, config, client, users, stats); err != nil {
		return stats, fmt.Errorf("user registration failed: %w", err)
	}

	// Step 4: Generate and submit skills
	subs, err := generateSubmissions(ctx, config, users, units, stats)
	if err != nil {
		return stats, fmt.Errorf("submission generation failed: %w", err)
	}
	submitSkills(ctx, config, client, subs, stats)

	// Step 5: Read rankings and the leaderboard
	rankings := retrieveRankings(ctx, config, client, users, stats)
	leaderboard, err := getLeaderboard(ctx, config, client, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 6: Verify
	if err := verifyResults(ctx, config, client, rankings, leaderboard); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	// Step 7: Save submissions
	if err := saveSubmissions(ctx, config, subs); err != nil {
		log.Warn(ctx, "failed to save submissions to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "load run completed successfully")
	return stats, nil
}

// waitForService polls /healthz until it answers 200 or HealthCheckDelay
// passes.
func waitForService(ctx context.Context, client *HTTPClient) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckDelay)
	defer cancel()

	log := logger.Get()
	log.Info(ctx, "checking service health")
	for {
		resp, err := client.do(ctx, http.MethodGet, "/healthz", nil)
		if err == nil {
			_, _ = readResponseBody(resp)
			if resp.StatusCode == StatusOK {
				log.Info(ctx, "service is healthy")
				return nil
			}
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("service not ready: %w", err)
		case <-time.After(healthCheckRetry):
		}
	}
}

// saveSubmissions writes the generated submissions as a JSON array.
func saveSubmissions(ctx context.Context, config *Config, subs []Submission) error {
	if len(subs) == 0 {
		return fmt.Errorf("no submissions to save")
	}

	filename := config.OutputFile
	if filename == "" {
		filename = "generated_submissions_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.SubmissionsSent > 0 {
		successRate = float64(stats.SubmissionsOK) / float64(stats.SubmissionsSent) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.SubmissionsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("unitsDiscovered", stats.UnitsDiscovered),
		logger.Int("usersRegistered", stats.UsersRegistered),
		logger.Int("submissionsGenerated", stats.SubmissionsGenerated),
		logger.Int("submissionsSent", stats.SubmissionsSent),
		logger.Int("submissionsOK", stats.SubmissionsOK),
		logger.Int("submissionsRejected", stats.SubmissionsRejected),
		logger.Int("submissionsFailed", stats.SubmissionsFailed),
		logger.Int("rankingsRetrieved", stats.RankingsRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
