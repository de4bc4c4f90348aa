package notes

import (
	"encoding/json"
	"time"
)

// TimeLayout is the wire format of every timestamp ("YYYY-MM-DD HH:MM").
const TimeLayout = "2006-01-02 15:04"

// CategoryType labels a note. The set is open: unknown labels pass through.
type CategoryType string

const (
	CategoryTime     CategoryType = "Time"
	CategoryLocation CategoryType = "Location"
	CategoryEvent    CategoryType = "Event"
	CategoryShopping CategoryType = "Shopping"
	CategoryCall     CategoryType = "Call"
	CategoryMeeting  CategoryType = "Meeting"
	CategoryDeadline CategoryType = "Deadline"
	CategoryHealth   CategoryType = "Health"
	CategoryRoutine  CategoryType = "Routine"
	CategoryOther    CategoryType = "Other"
)

// TriggerType identifies how a reminder fires. Only TriggerTime is interpreted.
type TriggerType string

const (
	TriggerTime     TriggerType = "Time"
	TriggerLocation TriggerType = "Location"
)

// TriggerDTO is a trigger as it appears on the wire.
type TriggerDTO struct {
	TriggerType  TriggerType `json:"triggerType"`
	TriggerValue string      `json:"triggerValue"`
}

// UnmarshalJSON accepts both camelCase and snake_case field names; older
// clients send trigger_type / trigger_value.
func (t *TriggerDTO) UnmarshalJSON(data []byte) error {
	var raw struct {
		TriggerType  TriggerType `json:"triggerType"`
		TriggerValue string      `json:"triggerValue"`
		SnakeType    TriggerType `json:"trigger_type"`
		SnakeValue   string      `json:"trigger_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.TriggerType = raw.TriggerType
	if t.TriggerType == "" {
		t.TriggerType = raw.SnakeType
	}
	t.TriggerValue = raw.TriggerValue
	if t.TriggerValue == "" {
		t.TriggerValue = raw.SnakeValue
	}
	return nil
}

// NoteDTO is a note as it appears on the wire. UpdatedAt is nil when absent.
type NoteDTO struct {
	Text         string       `json:"text"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    *string      `json:"updatedAt"`
	CategoryType CategoryType `json:"categoryType"`
	Triggers     []TriggerDTO `json:"triggers"`
}

// HintRequest is the body of a hint request: the full note history plus the
// moment the suggestion is made for.
type HintRequest struct {
	Context     []NoteDTO `json:"context"`
	CurrentTime string    `json:"current_time"`
}

// HintMeta carries what a hint formatter needs to phrase a prediction.
type HintMeta struct {
	PatternLabel     string       `json:"patternLabel"`
	Category         CategoryType `json:"category"`
	HabitualTime     string       `json:"habitualTime"`
	PredictedAt      string       `json:"predictedAt"`
	DeltaMinutes     int64        `json:"deltaMinutes"`
	DeltaValue       int          `json:"deltaValue"`
	DeltaUnit        string       `json:"deltaUnit"`
	MemberCount      int          `json:"memberCount"`
	MeanIntervalDays float64      `json:"meanIntervalDays"`
}

// HintResponse is the body of a hint response. Note and Meta are nil when no
// pattern qualified.
type HintResponse struct {
	ID       string    `json:"id,omitempty"`
	Note     *NoteDTO  `json:"note"`
	HintText string    `json:"hintText"`
	Meta     *HintMeta `json:"meta,omitempty"`
}

// Trigger is a parsed trigger. At is set only for TriggerTime.
type Trigger struct {
	Type  TriggerType
	Value string
	At    time.Time
}

// Record is a validated note. Index is the note's position in the request.
type Record struct {
	Index     int
	Text      string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Category  CategoryType
	Triggers  []Trigger
}

// Occurrence returns the earliest Time trigger of the record.
func (r Record) Occurrence() (time.Time, bool) {
	var (
		at    time.Time
		found bool
	)
	for _, tr := range r.Triggers {
		if tr.Type != TriggerTime {
			continue
		}
		if !found || tr.At.Before(at) {
			at = tr.At
			found = true
		}
	}
	return at, found
}

// FormatTime renders t in the wire layout.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
