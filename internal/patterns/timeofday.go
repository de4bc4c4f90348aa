package patterns

import (
	"math"
	"time"
)

const minutesPerDay = 24 * 60

// degenerateResultant is the mean resultant length below which the clock
// times cancel out (e.g. 00:00 and 12:00) and have no meaningful mean.
const degenerateResultant = 1e-6

// CircularMeanMinutes averages clock times given as minutes after midnight on
// a 24-hour circle, so 22:00 and 07:30 average to 02:45 rather than 14:45.
// ok is false for empty input or when the times cancel out.
func CircularMeanMinutes(minutes []float64) (mean float64, ok bool) {
	if len(minutes) == 0 {
		return 0, false
	}
	var sinSum, cosSum float64
	for _, m := range minutes {
		angle := 2 * math.Pi * m / minutesPerDay
		sinSum += math.Sin(angle)
		cosSum += math.Cos(angle)
	}
	n := float64(len(minutes))
	if math.Hypot(sinSum/n, cosSum/n) < degenerateResultant {
		return 0, false
	}
	angle := math.Atan2(sinSum, cosSum)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	mean = math.Mod(angle*minutesPerDay/(2*math.Pi), minutesPerDay)
	return mean, true
}

// MinutesOfDay returns the clock time of t as minutes after midnight.
func MinutesOfDay(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
}

// RoundMinutes rounds a clock time to the nearest step minutes, wrapping
// past midnight (23:58 with a 5 minute step becomes 00:00).
func RoundMinutes(minutes float64, step int) int {
	if step <= 0 {
		step = 1
	}
	rounded := int(math.Round(minutes/float64(step))) * step
	rounded %= minutesPerDay
	if rounded < 0 {
		rounded += minutesPerDay
	}
	return rounded
}
