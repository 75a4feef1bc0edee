// Package archive is the append-only log of classified messages.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/models"
)

// Backend is the part of the persistence collaborator the archive needs.
type Backend interface {
	AppendMessage(ctx context.Context, msg *models.MessageRecord) error
	CountByCategory(ctx context.Context, ownerID int64, since time.Time) ([]models.CategoryCount, error)
}

// Archive appends messages and answers per-owner category counts.
type Archive struct {
	backend Backend
	now     func() time.Time
}

// Option configures an Archive.
type Option func(*Archive)

// WithClock replaces time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		a.now = now
	}
}

func New(backend Backend, opts ...Option) *Archive {
	a := &Archive{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append stores a message, cutting its text to models.MaxTextLength
// characters, and returns the new record id.
func (a *Archive) Append(ctx context.Context, ownerID int64, text, senderLabel string, category models.Category, score int) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("archive: unknown category %q", category)
	}

	stored, _ := models.Truncate(text, models.MaxTextLength)
	rec := &models.MessageRecord{
		OwnerID:      ownerID,
		Text:         stored,
		SenderLabel:  senderLabel,
		Category:     category,
		UrgencyScore: score,
		CreatedAt:    a.now(),
	}
	if err := a.backend.AppendMessage(ctx, rec); err != nil {
		return 0, fmt.Errorf("archive: append: %w", err)
	}
	return rec.ID, nil
}

// QuerySince counts the owner's messages created strictly after since.
func (a *Archive) QuerySince(ctx context.Context, ownerID int64, since time.Time) (map[models.Category]int, error) {
	rows, err := a.backend.CountByCategory(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("archive: query since: %w", err)
	}
	counts := make(map[models.Category]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}

// QueryAll counts the owner's whole history, largest category first.
func (a *Archive) QueryAll(ctx context.Context, ownerID int64) ([]models.CategoryCount, error) {
	rows, err := a.backend.CountByCategory(ctx, ownerID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("archive: query all: %w", err)
	}
	return rows, nil
}
