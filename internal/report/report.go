// Package report turns scored findings into a CAM summary report with a
// derived severity bucket. Generation is deterministic: no external state
// beyond the clock used for the timestamp.
package report

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const defaultAuthor = "auto_cam_v2"

// Item is a single scored finding.
type Item struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Notes string  `json:"notes,omitempty"`
}

// Meta carries optional report metadata.
type Meta struct {
	ReportID string
	Author   string
	OrgID    string
}

// Report is derived, not stored.
type Report struct {
	ReportID       string  `json:"report_id"`
	GeneratedAt    string  `json:"generated_at"`
	Author         string  `json:"author"`
	OrgID          string  `json:"org_id,omitempty"`
	ItemCount      int     `json:"item_count"`
	AggregateScore float64 `json:"aggregate_score"`
	Items          []Item  `json:"items"`
	Severity       string  `json:"severity"`
}

// Generator builds reports. Now is injectable for tests.
type Generator struct {
	Now func() time.Time
}

// Generate summarizes the items. The aggregate score is the arithmetic mean
// of item scores, exactly 0.0 for an empty input.
func (g Generator) Generate(items []Item, meta Meta) Report {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	r := Report{
		ReportID:    meta.ReportID,
		GeneratedAt: now().UTC().Format(time.RFC3339),
		Author:      meta.Author,
		OrgID:       meta.OrgID,
		ItemCount:   len(items),
		Items:       make([]Item, 0, len(items)),
	}
	if r.ReportID == "" {
		r.ReportID = "cam_" + uuid.New().String()
	}
	if r.Author == "" {
		r.Author = defaultAuthor
	}
	if len(items) > 0 {
		total := 0.0
		for _, it := range items {
			total += it.Score
			r.Items = append(r.Items, it)
		}
		r.AggregateScore = total / float64(len(items))
	}
	r.Severity = Severity(r.AggregateScore)
	return r
}

// Generate builds a report with the default generator.
func Generate(items []Item, meta Meta) Report {
	return Generator{}.Generate(items, meta)
}

// Severity buckets a score: >=0.8 high, >=0.5 medium, below that low.
// Thresholds are inclusive on the lower bound.
func Severity(score float64) string {
	switch {
	case score >= 0.8:
		return SeverityHigh
	case score >= 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
