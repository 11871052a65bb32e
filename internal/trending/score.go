package trending

import (
	"math"
	"time"

	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/store"
)

// rawScore combines the engagement signals linearly, with the zap total
// folded in on a log scale so one whale payment cannot dominate.
func rawScore(w config.TrendingWeights, eng *store.Engagement) float64 {
	score := w.ZapCount*float64(eng.ZapCount) +
		w.Reaction*float64(eng.ReactionCount) +
		w.View*float64(eng.ViewCount) +
		w.Comment*float64(eng.CommentCount)

	if eng.ZapSatsTotal > 0 {
		score += w.ZapLog * math.Log2(float64(eng.ZapSatsTotal)+1)
	}
	return score
}

// decayFactor discounts a score by the event's age. Half-day-old content
// keeps most of its score; multi-day-old content needs a lot of engagement
// to stay ranked.
func decayFactor(age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	return 1 / math.Pow(1+hours/24, 1.5)
}

// Score computes the final integer score for an event: weighted signals,
// age decay, then scaled and rounded so close scores stay distinguishable
// as integers.
func Score(cfg *config.Trending, eng *store.Engagement, age time.Duration) int64 {
	raw := rawScore(cfg.Weights, eng)
	if raw <= 0 {
		return 0
	}
	return int64(math.Round(raw * decayFactor(age) * cfg.ScaleFactor))
}
