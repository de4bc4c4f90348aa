package hint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/hintd/internal/notes"
)

// Phrasebook holds the localized phrases used to name a reminder and to
// explain it. Hint templates are text/template sources; {{.Time}} expands to
// the habitual time of day.
type Phrasebook struct {
	Reminders       map[notes.CategoryType]string `yaml:"reminders"`
	Hints           map[notes.CategoryType]string `yaml:"hints"`
	DefaultReminder string                        `yaml:"default_reminder"`
	DefaultHint     string                        `yaml:"default_hint"`
	NoSuggestion    string                        `yaml:"no_suggestion"`
}

// DefaultPhrasebook returns the built-in Russian phrasebook.
func DefaultPhrasebook() Phrasebook {
	return Phrasebook{
		Reminders: map[notes.CategoryType]string{
			notes.CategoryShopping: "Сделать покупки",
			notes.CategoryCall:     "Позвонить",
			notes.CategoryHealth:   "Принять лекарства",
			notes.CategoryRoutine:  "Выполнить рутинное дело",
		},
		Hints: map[notes.CategoryType]string{
			notes.CategoryShopping: "Вы обычно делаете покупки около {{.Time}}",
			notes.CategoryCall:     "В это время вы часто звоните {{.Time}}",
			notes.CategoryHealth:   "Ваше обычное время для здоровья - {{.Time}}",
			notes.CategoryRoutine:  "Обычно вы это делаете около {{.Time}}",
		},
		DefaultReminder: "Напоминание",
		DefaultHint:     "Рекомендуемое время - {{.Time}}",
		NoSuggestion:    "Пока нет подходящих подсказок",
	}
}

// LoadPhrasebook reads a YAML phrasebook from path and layers it over the
// built-in one. Entries missing from the file keep their defaults. An empty
// path returns the defaults.
func LoadPhrasebook(path string) (Phrasebook, error) {
	pb := DefaultPhrasebook()
	if strings.TrimSpace(path) == "" {
		return pb, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pb, fmt.Errorf("phrasebook %s: %w", path, err)
		}
		return pb, fmt.Errorf("reading phrasebook: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return pb, nil
	}

	var file Phrasebook
	if err := yaml.Unmarshal(data, &file); err != nil {
		return pb, fmt.Errorf("parsing phrasebook %s: %w", path, err)
	}
	return pb.merge(file), nil
}

func (pb Phrasebook) merge(over Phrasebook) Phrasebook {
	out := Phrasebook{
		Reminders:       make(map[notes.CategoryType]string, len(pb.Reminders)+len(over.Reminders)),
		Hints:           make(map[notes.CategoryType]string, len(pb.Hints)+len(over.Hints)),
		DefaultReminder: pick(over.DefaultReminder, pb.DefaultReminder),
		DefaultHint:     pick(over.DefaultHint, pb.DefaultHint),
		NoSuggestion:    pick(over.NoSuggestion, pb.NoSuggestion),
	}
	for k, v := range pb.Reminders {
		out.Reminders[k] = v
	}
	for k, v := range over.Reminders {
		out.Reminders[k] = v
	}
	for k, v := range pb.Hints {
		out.Hints[k] = v
	}
	for k, v := range over.Hints {
		out.Hints[k] = v
	}
	return out
}

// Labels returns the per-category reminder phrases, suitable for use as
// engine.Config.Labels.
func (pb Phrasebook) Labels() map[notes.CategoryType]string {
	labels := make(map[notes.CategoryType]string, len(pb.Reminders))
	for k, v := range pb.Reminders {
		if strings.TrimSpace(v) != "" {
			labels[k] = v
		}
	}
	return labels
}

func pick(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
