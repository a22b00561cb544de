package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/chartrank/pkg/logger"
)

// Score bands as a share of the maximum score, in percent.
const (
	bandCount = 8
	eliteMin  = 90
	highMin   = 70
	midMin    = 40
	lowMin    = 10
)

// randInt returns a uniform integer in [0, n) using crypto/rand.
func randInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// between returns a uniform integer in [lo, hi].
func between(lo, hi int) int {
	return lo + randInt(hi-lo+1)
}

// generateUsers creates users with unique IDs; all are displayed.
func generateUsers(n int) []User {
	users := make([]User, n)
	for i := range users {
		id := uuid.New().String()
		users[i] = User{ID: id, Name: fmt.Sprintf("load-%d", i), Display: true}
	}
	return users
}

// generateSubmissions spreads n submissions over users and units. A user
// may hit the same unit twice; the later score replaces the earlier one.
func generateSubmissions(ctx context.Context, config *Config, users []User, units []string, stats *Stats) ([]Submission, error) {
	if len(users) == 0 || len(units) == 0 {
		return nil, fmt.Errorf("need users and units to generate submissions: users=%d units=%d", len(users), len(units))
	}
	logger.Get().Info(ctx, "generating submissions", logger.Int("count", config.Submissions))

	subs := make([]Submission, config.Submissions)
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		subs[i] = Submission{
			UserID: users[i%len(users)].ID,
			UnitID: units[randInt(len(units))],
			Score:  variedScore(config.MaxScore),
		}
	}
	stats.SubmissionsGenerated = len(subs)
	return subs, nil
}

// variedScore draws a score from a skewed distribution: most results land
// in the middle band, elite and very low ones are rare.
func variedScore(maxScore int) int {
	pct := func(p int) int { return maxScore * p / PercentageMultiplier }
	switch randInt(bandCount) {
	case 0:
		// Elite
		return between(pct(eliteMin), maxScore)
	case 1, 2:
		// High
		return between(pct(highMin), pct(eliteMin))
	case 3, 4, 5:
		// Middle
		return between(pct(midMin), pct(highMin))
	case 6:
		// Low
		return between(pct(lowMin), pct(midMin))
	default:
		// Very low
		return between(0, pct(lowMin))
	}
}
