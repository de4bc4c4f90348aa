// Package patterns groups a note history into recurring behavioural patterns
// and measures how often, and at what time of day, each one recurs.
package patterns

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/hintd/internal/notes"
)

const (
	DefaultSimilarityThreshold = 0.5
	DefaultMinMembers          = 2
)

// Options tunes clustering. Zero values fall back to the defaults.
type Options struct {
	// SimilarityThreshold is the minimum token overlap for two notes of the
	// same category to share a cluster.
	SimilarityThreshold float64
	// MinMembers is the smallest cluster that can establish periodicity.
	MinMembers int
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.MinMembers < 2 {
		o.MinMembers = DefaultMinMembers
	}
	return o
}

// Pattern is a cluster of same-category, similarly worded notes.
type Pattern struct {
	// Seed is the cluster's creation order across all categories.
	Seed     int
	Category notes.CategoryType
	// Text is the representative wording of the cluster.
	Text string
	// Members are indexes into the records slice passed to Extract, ordered
	// by occurrence.
	Members []int

	HabitualTimeOfDay time.Duration
	MeanIntervalDays  float64
	LastOccurrence    time.Time
	MemberCount       int
}

type member struct {
	record int
	at     time.Time
	key    textKey
}

type cluster struct {
	seed     int
	category notes.CategoryType
	members  []member
}

// Extract partitions records into patterns. Categories never merge; within a
// category a note joins the first cluster, in seed order, holding a similar
// note. Records without a Time trigger are skipped. Clusters smaller than
// MinMembers are dropped. The result is ordered by seed.
func Extract(records []notes.Record, opts Options) []Pattern {
	opts = opts.withDefaults()

	var clusters []*cluster
	byCategory := make(map[notes.CategoryType][]*cluster)

	for i, rec := range records {
		at, ok := rec.Occurrence()
		if !ok {
			continue
		}
		m := member{record: i, at: at, key: newTextKey(rec.Text)}

		var home *cluster
		for _, c := range byCategory[rec.Category] {
			if c.accepts(m.key, opts.SimilarityThreshold) {
				home = c
				break
			}
		}
		if home == nil {
			home = &cluster{seed: len(clusters), category: rec.Category}
			clusters = append(clusters, home)
			byCategory[rec.Category] = append(byCategory[rec.Category], home)
		}
		home.members = append(home.members, m)
	}

	var out []Pattern
	for _, c := range clusters {
		if len(c.members) < opts.MinMembers {
			continue
		}
		out = append(out, c.pattern(records))
	}
	return out
}

func (c *cluster) accepts(key textKey, threshold float64) bool {
	for _, m := range c.members {
		if m.key.similar(key, threshold) {
			return true
		}
	}
	return false
}

func (c *cluster) pattern(records []notes.Record) Pattern {
	ms := make([]member, len(c.members))
	copy(ms, c.members)
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].at.Before(ms[j].at) })

	p := Pattern{
		Seed:           c.seed,
		Category:       c.category,
		Members:        make([]int, len(ms)),
		LastOccurrence: ms[len(ms)-1].at,
		MemberCount:    len(ms),
	}

	clock := make([]float64, len(ms))
	for i, m := range ms {
		p.Members[i] = m.record
		clock[i] = MinutesOfDay(m.at)
	}

	var gapSum float64
	for i := 1; i < len(ms); i++ {
		gapSum += ms[i].at.Sub(ms[i-1].at).Hours() / 24
	}
	p.MeanIntervalDays = gapSum / float64(len(ms)-1)

	mean, ok := CircularMeanMinutes(clock)
	if !ok {
		mean = clock[len(clock)-1]
	}
	p.HabitualTimeOfDay = time.Duration(mean * float64(time.Minute))

	p.Text = representativeText(ms, records)
	return p
}

// representativeText picks the most frequent wording; ties go to the shorter
// wording, then to the most recent one. ms must be sorted by occurrence.
func representativeText(ms []member, records []notes.Record) string {
	type candidate struct {
		count  int
		length int
		latest int
		text   string
	}
	byText := make(map[string]*candidate)
	var order []string
	for i, m := range ms {
		c, ok := byText[m.key.bare]
		if !ok {
			c = &candidate{length: utf8.RuneCountInString(m.key.bare)}
			byText[m.key.bare] = c
			order = append(order, m.key.bare)
		}
		c.count++
		c.latest = i
		c.text = strings.TrimSpace(records[m.record].Text)
	}

	var best *candidate
	for _, k := range order {
		c := byText[k]
		switch {
		case best == nil:
			best = c
		case c.count != best.count:
			if c.count > best.count {
				best = c
			}
		case c.length != best.length:
			if c.length < best.length {
				best = c
			}
		case c.latest > best.latest:
			best = c
		}
	}
	return best.text
}
