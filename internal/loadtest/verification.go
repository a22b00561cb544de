package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/chartrank/pkg/logger"
)

// ErrInconsistent is returned when the leaderboard contradicts itself or
// the per-user endpoints.
var ErrInconsistent = errors.New("ranking inconsistency")

// totalSamples is how many leaderboard rows are checked against stored totals.
const totalSamples = 10

// verifyResults checks leaderboard ordering, competition ranks and agreement
// between /leaderboard, /rank and /users/{id}/total.
func verifyResults(ctx context.Context, config *Config, client *HTTPClient, rankings, leaderboard []Entry) error {
	log := logger.Get()
	if len(rankings) == 0 {
		return fmt.Errorf("%w: no rankings to verify", ErrInconsistent)
	}

	var problems []error
	if err := verifyLeaderboard(leaderboard); err != nil {
		problems = append(problems, err)
	}
	if err := verifyRankOrder(rankings); err != nil {
		problems = append(problems, err)
	}
	if err := verifyAgreement(rankings, leaderboard); err != nil {
		problems = append(problems, err)
	}
	for i := 0; i < len(leaderboard) && i < totalSamples; i++ {
		e := leaderboard[i]
		t, err := retrieveTotal(ctx, client, e.UserID)
		if err != nil {
			problems = append(problems, fmt.Errorf("total of %s: %w", e.UserID, err))
			continue
		}
		if !samePoints(t.Points, e.Points) {
			problems = append(problems, fmt.Errorf("%w: %s has total %.2f but leaderboard shows %.2f",
				ErrInconsistent, e.UserID, t.Points, e.Points))
		}
	}

	displayTopPerformers(ctx, rankings, leaderboard, config.Verbose)

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	log.Info(ctx, "result verification completed")
	return nil
}

// verifyLeaderboard checks that points never increase down the board and
// that each rank is one plus the number of strictly better rows above it.
func verifyLeaderboard(leaderboard []Entry) error {
	better := 0
	for i, e := range leaderboard {
		if i > 0 {
			prev := leaderboard[i-1]
			if e.Points > prev.Points {
				return fmt.Errorf("%w: entry %d has more points than entry %d", ErrInconsistent, i, i-1)
			}
			if e.Points < prev.Points {
				better = i
			}
		}
		if e.Rank != better+1 {
			return fmt.Errorf("%w: entry %d (%s) has rank %d, want %d", ErrInconsistent, i, e.UserID, e.Rank, better+1)
		}
	}
	return nil
}

// verifyRankOrder checks that rank follows points across every retrieved
// user: more points means a better rank and ties share one.
func verifyRankOrder(rankings []Entry) error {
	sorted := make([]Entry, len(rankings))
	copy(sorted, rankings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Points > sorted[j].Points })
	for i := 1; i < len(sorted); i++ {
		a, b := sorted[i-1], sorted[i]
		switch {
		case a.Points == b.Points && a.Rank != b.Rank:
			return fmt.Errorf("%w: %s and %s tie on %.2f but rank %d and %d",
				ErrInconsistent, a.UserID, b.UserID, a.Points, a.Rank, b.Rank)
		case a.Points > b.Points && a.Rank >= b.Rank:
			return fmt.Errorf("%w: %s outscores %s but ranks %d against %d",
				ErrInconsistent, a.UserID, b.UserID, a.Rank, b.Rank)
		}
	}
	return nil
}

// verifyAgreement checks that every leaderboard row we also ranked matches.
func verifyAgreement(rankings, leaderboard []Entry) error {
	byUser := make(map[string]Entry, len(rankings))
	for _, e := range rankings {
		byUser[e.UserID] = e
	}
	for _, e := range leaderboard {
		r, ok := byUser[e.UserID]
		if !ok {
			continue
		}
		if r.Rank != e.Rank || !samePoints(r.Points, e.Points) {
			return fmt.Errorf("%w: %s is %d/%.2f on the leaderboard but %d/%.2f by rank",
				ErrInconsistent, e.UserID, e.Rank, e.Points, r.Rank, r.Points)
		}
	}
	return nil
}

func samePoints(a, b float64) bool {
	return math.Abs(a-b) < pointsTolerance
}

// displayTopPerformers logs the head of the leaderboard.
func displayTopPerformers(ctx context.Context, rankings, leaderboard []Entry, verbose bool) {
	log := logger.Get()
	topN := min(10, len(leaderboard))
	for i := 0; i < topN; i++ {
		e := leaderboard[i]
		log.Info(ctx, "leaderboard", logger.Int("rank", e.Rank), logger.String("user_id", e.UserID), logger.Float64("points", e.Points))
	}
	if verbose && len(rankings) > 0 {
		log.Info(ctx, "points statistics",
			logger.Float64("average", averagePoints(rankings)),
			logger.Int("users", len(rankings)),
		)
	}
}

// averagePoints calculates the average points of rankings.
func averagePoints(rankings []Entry) float64 {
	if len(rankings) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range rankings {
		sum += e.Points
	}
	return sum / float64(len(rankings))
}
