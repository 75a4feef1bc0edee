// Package digest builds read-only summaries over the message archive: the
// trailing daily digest and all-time statistics.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/models"
)

const (
	// DailyWindow is how far back the daily digest looks.
	DailyWindow = 24 * time.Hour

	// NoisyThreshold is the daily total above which a digest is considered noisy.
	NoisyThreshold = 20
)

// Source is the archive query surface.
type Source interface {
	QuerySince(ctx context.Context, ownerID int64, since time.Time) (map[models.Category]int, error)
	QueryAll(ctx context.Context, ownerID int64) ([]models.CategoryCount, error)
}

// Row is one category line of a report.
type Row struct {
	Category models.Category
	Count    int
	Percent  float64
}

// Report is an aggregated view of one owner's messages. Since is zero for
// all-time reports.
type Report struct {
	Since time.Time
	Rows  []Row
	Total int
}

// Empty reports whether no message matched.
func (r Report) Empty() bool {
	return r.Total == 0
}

// Noisy reports whether the report counts more than NoisyThreshold messages.
func (r Report) Noisy() bool {
	return r.Total > NoisyThreshold
}

type Aggregator struct {
	source Source
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{source: source, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Daily summarizes the last DailyWindow, rows in canonical category order.
func (a *Aggregator) Daily(ctx context.Context, ownerID int64) (Report, error) {
	return a.Since(ctx, ownerID, a.now().Add(-DailyWindow))
}

// Since summarizes messages created strictly after since.
func (a *Aggregator) Since(ctx context.Context, ownerID int64, since time.Time) (Report, error) {
	counts, err := a.source.QuerySince(ctx, ownerID, since)
	if err != nil {
		return Report{}, fmt.Errorf("digest: %w", err)
	}

	var rows []models.CategoryCount
	for _, c := range models.Categories {
		if n := counts[c]; n > 0 {
			rows = append(rows, models.CategoryCount{Category: c, Count: n})
		}
	}
	r := buildReport(rows)
	r.Since = since
	return r, nil
}

// AllTime summarizes the owner's whole history, largest category first.
func (a *Aggregator) AllTime(ctx context.Context, ownerID int64) (Report, error) {
	rows, err := a.source.QueryAll(ctx, ownerID)
	if err != nil {
		return Report{}, fmt.Errorf("stats: %w", err)
	}
	return buildReport(rows), nil
}

func buildReport(counts []models.CategoryCount) Report {
	var r Report
	for _, c := range counts {
		r.Total += c.Count
	}
	r.Rows = make([]Row, 0, len(counts))
	for _, c := range counts {
		row := Row{Category: c.Category, Count: c.Count}
		if r.Total > 0 {
			row.Percent = float64(c.Count) / float64(r.Total) * 100
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}
