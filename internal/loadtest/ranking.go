package loadtest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/okian/chartrank/pkg/logger"
)

// retrieveRankings fetches the rank of every user concurrently.
func retrieveRankings(ctx context.Context, config *Config, client *HTTPClient, users []User, stats *Stats) []Entry {
	log := logger.Get()
	log.Info(ctx, "retrieving rankings", logger.Int("users", len(users)), logger.Int("workers", config.Workers))

	rankings := make([]Entry, len(users))
	var failed int64

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexChan {
				id := users[index].ID
				var entry Entry
				if err := client.getJSON(ctx, "/rank/"+url.PathEscape(id), &entry); err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "failed to get rank", logger.String("user_id", id), logger.Error(err))
					}
					continue
				}
				rankings[index] = entry
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range users {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	// An empty UserID marks a failed retrieval.
	valid := make([]Entry, 0, len(rankings))
	for _, e := range rankings {
		if e.UserID != "" {
			valid = append(valid, e)
		}
	}
	stats.RankingsRetrieved = len(valid)
	log.Info(ctx, "ranking retrieval completed",
		logger.Int("retrieved", len(valid)),
		logger.Int64("failed", atomic.LoadInt64(&failed)),
	)
	return valid
}

// retrieveTotal fetches the stored total of one user.
func retrieveTotal(ctx context.Context, client *HTTPClient, userID string) (Total, error) {
	var t Total
	err := client.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/total", &t)
	return t, err
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) ([]Entry, error) {
	var leaderboard []Entry
	if err := client.getJSON(ctx, fmt.Sprintf("/leaderboard?limit=%d", config.TopN), &leaderboard); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(leaderboard)
	logger.Get().Info(ctx, "retrieved leaderboard", logger.Int("entries", len(leaderboard)))
	return leaderboard, nil
}
