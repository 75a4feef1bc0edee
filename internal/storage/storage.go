package storage

import (
	"context"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/models"
)

// Storage is the persistence collaborator shared by the presence store,
// the archive and the transport.
type Storage interface {
	UserStorage
	MessageStorage
	Close() error
}

// UserStorage keeps users and their presence.
type UserStorage interface {
	// UpsertUser creates the user on first contact and refreshes the
	// informational labels afterwards. It never changes presence.
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, bool, error)
	ListUsers(ctx context.Context) ([]int64, error)

	// SwapWakeAt atomically replaces the user's wake time (nil means awake)
	// and returns the previous value. A missing user is created.
	SwapWakeAt(ctx context.Context, userID int64, wakeAt *time.Time) (*time.Time, error)
}

// MessageStorage is the append-only message archive.
type MessageStorage interface {
	// AppendMessage inserts msg and sets msg.ID.
	AppendMessage(ctx context.Context, msg *models.MessageRecord) error

	// CountByCategory aggregates the owner's messages created strictly
	// after since (the zero time means all history), sorted by count
	// descending and then by category name.
	CountByCategory(ctx context.Context, ownerID int64, since time.Time) ([]models.CategoryCount, error)
}
