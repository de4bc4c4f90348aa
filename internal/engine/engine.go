// Package engine turns a note history into a single next-reminder guess. It
// runs the pipeline normalize → extract → select → project → assemble and is
// a pure function of its input and Config: no I/O, no shared state, safe for
// concurrent use.
package engine

import (
	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/patterns"
)

const (
	DefaultDueFraction  = 0.5
	DefaultLeadFraction = 0.2
	DefaultRoundMinutes = 5
)

// Config holds every tunable the engine uses.
type Config struct {
	// SimilarityThreshold is the token overlap above which two same-category
	// notes share a pattern.
	SimilarityThreshold float64
	// MinMembers is the smallest pattern eligible for selection.
	MinMembers int
	// DueFraction: a pattern is due once at least this fraction of its mean
	// interval has passed since its last occurrence.
	DueFraction float64
	// LeadFraction sizes the window, as a fraction of the interval, within
	// which a projected trigger is pulled forward to today. Zero means the
	// default; set DisableLead to turn the window off.
	LeadFraction float64
	DisableLead  bool
	// RoundMinutes is the granularity of the predicted time of day.
	RoundMinutes int
	// Labels maps a category to the phrase used as the synthesized note text.
	// Categories without a label use the pattern's own wording.
	Labels map[notes.CategoryType]string
}

// DefaultConfig returns the stock tuning with no category labels.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: patterns.DefaultSimilarityThreshold,
		MinMembers:          patterns.DefaultMinMembers,
		DueFraction:         DefaultDueFraction,
		LeadFraction:        DefaultLeadFraction,
		RoundMinutes:        DefaultRoundMinutes,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.MinMembers < 2 {
		c.MinMembers = d.MinMembers
	}
	if c.DueFraction <= 0 {
		c.DueFraction = d.DueFraction
	}
	if c.LeadFraction <= 0 {
		c.LeadFraction = d.LeadFraction
	}
	if c.RoundMinutes <= 0 {
		c.RoundMinutes = d.RoundMinutes
	}
	return c
}

// Engine predicts the next reminder from a note history.
type Engine struct {
	cfg Config
}

// New creates an Engine. Unset or invalid Config fields take their defaults.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Predict runs the full pipeline. It returns a *notes.MalformedInputError for
// invalid input and a Result with Found == false when no pattern qualifies.
func (e *Engine) Predict(history []notes.NoteDTO, currentTime string) (Result, error) {
	records, now, err := notes.Normalize(history, currentTime)
	if err != nil {
		return Result{}, err
	}

	found := patterns.Extract(records, patterns.Options{
		SimilarityThreshold: e.cfg.SimilarityThreshold,
		MinMembers:          e.cfg.MinMembers,
	})
	res := Result{Patterns: len(found)}

	best, ok := Select(found, now, e.cfg.DueFraction)
	if !ok {
		return res, nil
	}

	at := Project(best, now, e.cfg)
	res.Found = true
	res.Prediction = Assemble(best, at, now, e.cfg)
	return res, nil
}
