package engine

import (
	"time"

	"github.com/kalambet/hintd/internal/patterns"
)

// Assemble packages the selected pattern and its projected trigger into a
// Prediction created at now.
func Assemble(p patterns.Pattern, triggerAt, now time.Time, cfg Config) Prediction {
	text := p.Text
	if label, ok := cfg.Labels[p.Category]; ok && label != "" {
		text = label
	}

	delta := triggerAt.Sub(now)
	value, unit := splitDelta(delta)

	return Prediction{
		Text:             text,
		Category:         p.Category,
		CreatedAt:        now,
		TriggerAt:        triggerAt,
		PatternLabel:     string(p.Category) + "/" + p.Text,
		HabitualClock:    patterns.RoundMinutes(p.HabitualTimeOfDay.Minutes(), cfg.RoundMinutes),
		Delta:            delta,
		DeltaValue:       value,
		DeltaUnit:        unit,
		MemberCount:      p.MemberCount,
		MeanIntervalDays: p.MeanIntervalDays,
	}
}

// splitDelta expresses d in whole hours below a day and whole days otherwise.
func splitDelta(d time.Duration) (int, DeltaUnit) {
	abs := d
	if abs < 0 {
		abs = -abs
	}
	if abs < day {
		return int(d / time.Hour), DeltaHours
	}
	return int(d / day), DeltaDays
}
