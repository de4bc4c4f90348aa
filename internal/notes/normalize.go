package notes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrMalformedInput matches every *MalformedInputError via errors.Is.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError reports an unparsable timestamp or a missing required
// field. Index is the position of the offending note, or -1 for request-level
// fields such as current_time.
type MalformedInputError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed input: context[%d].%s: %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(index int, field, format string, args ...any) error {
	return &MalformedInputError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ParseTime parses a wire timestamp. Timestamps carry no zone and are read as UTC.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, strings.TrimSpace(s))
}

// Normalize validates the raw context and current time and returns the notes
// sorted by creation time. The sort is stable, so notes created at the same
// minute keep their request order.
func Normalize(raw []NoteDTO, currentTime string) ([]Record, time.Time, error) {
	now, err := ParseTime(currentTime)
	if err != nil {
		return nil, time.Time{}, malformed(-1, "current_time", "expected %q, got %q", "YYYY-MM-DD HH:MM", currentTime)
	}

	records := make([]Record, 0, len(raw))
	for i, n := range raw {
		rec, err := normalizeNote(i, n)
		if err != nil {
			return nil, time.Time{}, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, now, nil
}

func normalizeNote(i int, n NoteDTO) (Record, error) {
	if strings.TrimSpace(n.Text) == "" {
		return Record{}, malformed(i, "text", "required")
	}
	if strings.TrimSpace(string(n.CategoryType)) == "" {
		return Record{}, malformed(i, "categoryType", "required")
	}
	if len(n.Triggers) == 0 {
		return Record{}, malformed(i, "triggers", "at least one trigger is required")
	}

	created, err := ParseTime(n.CreatedAt)
	if err != nil {
		return Record{}, malformed(i, "createdAt", "unparsable timestamp %q", n.CreatedAt)
	}

	rec := Record{
		Index:     i,
		Text:      n.Text,
		CreatedAt: created,
		Category:  CategoryType(strings.TrimSpace(string(n.CategoryType))),
		Triggers:  make([]Trigger, 0, len(n.Triggers)),
	}

	if n.UpdatedAt != nil && strings.TrimSpace(*n.UpdatedAt) != "" {
		updated, err := ParseTime(*n.UpdatedAt)
		if err != nil {
			return Record{}, malformed(i, "updatedAt", "unparsable timestamp %q", *n.UpdatedAt)
		}
		if updated.Before(created) {
			return Record{}, malformed(i, "updatedAt", "%s is before createdAt %s", *n.UpdatedAt, n.CreatedAt)
		}
		rec.UpdatedAt = &updated
	}

	for j, tr := range n.Triggers {
		field := fmt.Sprintf("triggers[%d]", j)
		if strings.TrimSpace(string(tr.TriggerType)) == "" {
			return Record{}, malformed(i, field+".triggerType", "required")
		}
		t := Trigger{Type: tr.TriggerType, Value: tr.TriggerValue}
		if tr.TriggerType == TriggerTime {
			at, err := ParseTime(tr.TriggerValue)
			if err != nil {
				return Record{}, malformed(i, field+".triggerValue", "unparsable timestamp %q", tr.TriggerValue)
			}
			t.At = at
		}
		rec.Triggers = append(rec.Triggers, t)
	}
	return rec, nil
}
