package engine

import (
	"math"
	"time"

	"github.com/kalambet/hintd/internal/patterns"
)

// Project returns the next trigger time for p, strictly after now.
//
// The date advances from the last occurrence's date in whole steps of the
// mean interval (rounded to days, at least one) until it reaches today. When
// that date falls within the lead window (floor(step*LeadFraction) days
// ahead of today) and the habitual time is still ahead today, the trigger is
// pulled to today so the reminder arrives before the habit is overdue. The
// time of day is the habitual time rounded to RoundMinutes. Zero Config
// fields take their defaults.
func Project(p patterns.Pattern, now time.Time, cfg Config) time.Time {
	cfg = cfg.withDefaults()
	step := int(math.Round(p.MeanIntervalDays))
	if step < 1 {
		step = 1
	}
	clock := time.Duration(patterns.RoundMinutes(p.HabitualTimeOfDay.Minutes(), cfg.RoundMinutes)) * time.Minute

	today := midnight(now)
	last := midnight(p.LastOccurrence)

	k := 1
	if behind := wholeDays(today.Sub(last)); behind > step {
		k = (behind + step - 1) / step
	}
	date := last.AddDate(0, 0, k*step)

	at := date.Add(clock)
	if lead := int(math.Floor(float64(step) * cfg.LeadFraction)); lead > 0 && !cfg.DisableLead {
		ahead := wholeDays(date.Sub(today))
		if ahead > 0 && ahead <= lead {
			if candidate := today.Add(clock); candidate.After(now) {
				at = candidate
			}
		}
	}

	for !at.After(now) {
		at = at.AddDate(0, 0, step)
	}
	return at
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func wholeDays(d time.Duration) int {
	return int(math.Round(days(d)))
}
