// Package hint phrases an engine prediction as a short question for the user,
// e.g. "Вы обычно делаете покупки около 17:20. Напомнить через 7 часов?".
package hint

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/kalambet/hintd/internal/engine"
	"github.com/kalambet/hintd/internal/notes"
)

// Formatter renders hint sentences from a Phrasebook. It is safe for
// concurrent use.
type Formatter struct {
	pb          Phrasebook
	hints       map[notes.CategoryType]*template.Template
	defaultHint *template.Template
}

type hintData struct {
	Time     string
	Category string
}

// New compiles the phrasebook's hint templates.
func New(pb Phrasebook) (*Formatter, error) {
	f := &Formatter{
		pb:    pb,
		hints: make(map[notes.CategoryType]*template.Template, len(pb.Hints)),
	}
	for cat, src := range pb.Hints {
		tmpl, err := template.New(string(cat)).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("hint template for %s: %w", cat, err)
		}
		f.hints[cat] = tmpl
	}
	tmpl, err := template.New("default").Option("missingkey=error").Parse(pb.DefaultHint)
	if err != nil {
		return nil, fmt.Errorf("default hint template: %w", err)
	}
	f.defaultHint = tmpl
	return f, nil
}

// Phrasebook returns the phrasebook the formatter was built from.
func (f *Formatter) Phrasebook() Phrasebook {
	return f.pb
}

// Format returns the hint for res, or the no-suggestion text when nothing was
// found.
func (f *Formatter) Format(res engine.Result) (string, error) {
	if !res.Found {
		return f.pb.NoSuggestion, nil
	}
	p := res.Prediction

	tmpl, ok := f.hints[p.Category]
	if !ok {
		tmpl = f.defaultHint
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, hintData{Time: p.HabitualTime(), Category: string(p.Category)}); err != nil {
		return "", fmt.Errorf("rendering hint for %s: %w", p.Category, err)
	}
	sb.WriteString(". ")
	sb.WriteString(askWhen(p))
	return sb.String(), nil
}

// askWhen counts day deltas in calendar dates; "завтра" means the next date.
func askWhen(p engine.Prediction) string {
	if p.DeltaUnit == engine.DeltaDays {
		days := calendarDays(p.CreatedAt, p.TriggerAt)
		if days == 1 {
			return fmt.Sprintf("Напомнить завтра в %s?", p.TriggerAt.Format("15:04"))
		}
		return fmt.Sprintf("Напомнить через %d %s?", days, plural(days, "день", "дня", "дней"))
	}
	if p.DeltaValue == 0 {
		m := int(p.Delta / time.Minute)
		return fmt.Sprintf("Напомнить через %d %s?", m, plural(m, "минуту", "минуты", "минут"))
	}
	return fmt.Sprintf("Напомнить через %d %s?", p.DeltaValue, plural(p.DeltaValue, "час", "часа", "часов"))
}

// calendarDays counts midnights between from and to.
func calendarDays(from, to time.Time) int {
	midnight := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return int(midnight(to).Sub(midnight(from)) / (24 * time.Hour))
}

// plural picks the Russian noun form agreeing with n.
func plural(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	switch mod10, mod100 := n%10, n%100; {
	case mod10 == 1 && mod100 != 11:
		return one
	case mod10 >= 2 && mod10 <= 4 && (mod100 < 12 || mod100 > 14):
		return few
	default:
		return many
	}
}
