package engine

import (
	"fmt"
	"time"

	"github.com/kalambet/hintd/internal/notes"
)

// DeltaUnit is the unit a delta-to-trigger is phrased in.
type DeltaUnit string

const (
	DeltaHours DeltaUnit = "hours"
	DeltaDays  DeltaUnit = "days"
)

// Prediction is the engine's guess at the user's next reminder.
type Prediction struct {
	Text      string
	Category  notes.CategoryType
	CreatedAt time.Time
	TriggerAt time.Time

	// PatternLabel names the cluster the guess came from, e.g. "Shopping/Купить молоко".
	PatternLabel string
	// HabitualClock is the rounded habitual time of day, in minutes after midnight.
	HabitualClock int
	// Delta is TriggerAt minus CreatedAt. DeltaValue is Delta in whole
	// DeltaUnit, truncated toward zero.
	Delta      time.Duration
	DeltaValue int
	DeltaUnit  DeltaUnit

	MemberCount      int
	MeanIntervalDays float64
}

// Result is the outcome of a single Predict call. Found is false when no
// pattern qualified; that is a valid answer, not an error.
type Result struct {
	Found      bool
	Prediction Prediction
	// Patterns is the number of patterns with enough members to be considered.
	Patterns int
}

// HabitualTime renders HabitualClock as "HH:MM".
func (p Prediction) HabitualTime() string {
	return fmt.Sprintf("%02d:%02d", p.HabitualClock/60, p.HabitualClock%60)
}

// Note renders the prediction as a wire note: created now, never updated,
// with a single Time trigger.
func (p Prediction) Note() notes.NoteDTO {
	return notes.NoteDTO{
		Text:         p.Text,
		CreatedAt:    notes.FormatTime(p.CreatedAt),
		UpdatedAt:    nil,
		CategoryType: p.Category,
		Triggers: []notes.TriggerDTO{{
			TriggerType:  notes.TriggerTime,
			TriggerValue: notes.FormatTime(p.TriggerAt),
		}},
	}
}

// Meta renders the formatter metadata in wire form.
func (p Prediction) Meta() notes.HintMeta {
	return notes.HintMeta{
		PatternLabel:     p.PatternLabel,
		Category:         p.Category,
		HabitualTime:     p.HabitualTime(),
		PredictedAt:      notes.FormatTime(p.TriggerAt),
		DeltaMinutes:     int64(p.Delta / time.Minute),
		DeltaValue:       p.DeltaValue,
		DeltaUnit:        string(p.DeltaUnit),
		MemberCount:      p.MemberCount,
		MeanIntervalDays: p.MeanIntervalDays,
	}
}
