package engine

import (
	"math"
	"time"

	"github.com/kalambet/hintd/internal/patterns"
)

const day = 24 * time.Hour

func days(d time.Duration) float64 {
	return float64(d) / float64(day)
}

// Select picks the pattern most likely to recur next. A pattern is a
// candidate once dueFraction of its mean interval has elapsed since its last
// occurrence; a last occurrence in the future never qualifies. Among
// candidates the one whose expected next occurrence is closest to now wins,
// then the one with more members, then the one seeded first.
func Select(ps []patterns.Pattern, now time.Time, dueFraction float64) (patterns.Pattern, bool) {
	var (
		best     patterns.Pattern
		bestDist float64
		found    bool
	)
	for _, p := range ps {
		since := days(now.Sub(p.LastOccurrence))
		if since < 0 || since < p.MeanIntervalDays*dueFraction {
			continue
		}
		dist := math.Abs(since - p.MeanIntervalDays)
		switch {
		case !found:
		case dist < bestDist:
		case dist == bestDist && p.MemberCount > best.MemberCount:
		default:
			continue
		}
		best, bestDist, found = p, dist, true
	}
	return best, found
}
