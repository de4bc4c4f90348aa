package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Suggestion statuses.
const (
	StatusServed   = "served"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Suggestion is one served hint together with the request that produced it.
type Suggestion struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	RequestTime string     `json:"request_time"` // the request's current_time, wire layout
	Category    string     `json:"category,omitempty"`
	NoteText    string     `json:"note_text,omitempty"`
	PredictedAt string     `json:"predicted_at,omitempty"` // wire layout, empty when nothing was found
	HintText    string     `json:"hint_text"`
	Found       bool       `json:"found"`
	Status      string     `json:"status"`
	Accepted    *bool      `json:"accepted,omitempty"`
	FeedbackAt  *time.Time `json:"feedback_at,omitempty"`
	RequestJSON string     `json:"request_json,omitempty"`
}
