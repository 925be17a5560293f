package smoke

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/aecr/pkg/logger"
)

// verifyResults checks every returned score. A present score lies within
// 0-100 with KPI weights that sum to one; an absent score carries a reason.
func verifyResults(ctx context.Context, config *Config, scores []ScoreResult, stats *Stats) error {
	log := logger.OrDiscard().Named("smoke")
	for _, s := range scores {
		if s.Score == nil {
			if s.Reason == "" {
				return fmt.Errorf("user %s: no score and no reason", s.UserID)
			}
			stats.Unavailable++
			continue
		}
		if err := verifyComposite(*s.Score); err != nil {
			return fmt.Errorf("user %s: %w", s.UserID, err)
		}
		stats.Scored++
	}
	displayTopScores(ctx, log, scores, config.Verbose)
	return nil
}

func verifyComposite(c Composite) error {
	if c.Score < 0 || c.Score > maxScore {
		return fmt.Errorf("score %.3f outside 0-%d", c.Score, maxScore)
	}
	sum := 0.0
	for _, v := range c.Contributions {
		sum += v
	}
	if math.Abs(sum-1) > contributionEpsilon {
		return fmt.Errorf("contributions sum to %.6f, want 1", sum)
	}
	if c.Percentile != nil && (*c.Percentile < 0 || *c.Percentile > maxScore) {
		return fmt.Errorf("percentile %.3f outside 0-%d", *c.Percentile, maxScore)
	}
	return nil
}

func displayTopScores(ctx context.Context, log logger.Logger, scores []ScoreResult, verbose bool) {
	scored := make([]ScoreResult, 0, len(scores))
	for _, s := range scores {
		if s.Score != nil {
			scored = append(scored, s)
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score.Score > scored[j].Score.Score })

	limit := 3
	if verbose {
		limit = len(scored)
	}
	for i := 0; i < len(scored) && i < limit; i++ {
		log.Info(ctx, "score",
			logger.Int("position", i+1),
			logger.String("user", scored[i].UserID),
			logger.String("industry", scored[i].Industry),
			logger.Float64("score", scored[i].Score.Score))
	}
}
