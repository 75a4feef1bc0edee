// Package presence tracks whether a user is awake or asleep until a
// scheduled wake time. Expiry is evaluated lazily at read time; nothing
// runs in the background.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/reality-filter-bot/internal/models"
)

// MaxSleepHours is the longest sleep a user may request.
const MaxSleepHours = 24

// ErrInvalidDuration is returned for sleep durations outside (0, 24] hours.
var ErrInvalidDuration = errors.New("sleep duration must be more than 0 and at most 24 hours")

// Backend is the part of the persistence collaborator the store needs.
type Backend interface {
	GetUser(ctx context.Context, id int64) (*models.User, bool, error)
	SwapWakeAt(ctx context.Context, userID int64, wakeAt *time.Time) (*time.Time, error)
}

// Status is a point-in-time view of a user's presence.
// WakeAt is zero unless Asleep is true.
type Status struct {
	Asleep bool
	WakeAt time.Time
}

// Store implements the awake/asleep state machine on top of a Backend.
type Store struct {
	backend Backend
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a presence Store.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnterSleep puts the user to sleep for the given number of hours and
// returns the wake time. Invalid durations leave the stored state untouched.
func (s *Store) EnterSleep(ctx context.Context, userID int64, hours float64) (time.Time, error) {
	// written so that NaN fails too
	if !(hours > 0 && hours <= MaxSleepHours) {
		return time.Time{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, hours)
	}

	wakeAt := s.now().Add(time.Duration(hours * float64(time.Hour)))
	if _, err := s.backend.SwapWakeAt(ctx, userID, &wakeAt); err != nil {
		return time.Time{}, fmt.Errorf("presence: enter sleep: %w", err)
	}
	return wakeAt, nil
}

// Wake marks the user awake. It reports whether the user was effectively
// asleep, i.e. had a wake time still in the future.
func (s *Store) Wake(ctx context.Context, userID int64) (bool, error) {
	prev, err := s.backend.SwapWakeAt(ctx, userID, nil)
	if err != nil {
		return false, fmt.Errorf("presence: wake: %w", err)
	}
	return prev != nil && s.now().Before(*prev), nil
}

// IsAsleep reports the user's presence without mutating storage. A user
// whose wake time has passed is reported awake.
func (s *Store) IsAsleep(ctx context.Context, userID int64) (Status, error) {
	user, ok, err := s.backend.GetUser(ctx, userID)
	if err != nil {
		return Status{}, fmt.Errorf("presence: lookup: %w", err)
	}
	if !ok || user.WakeAt == nil {
		return Status{}, nil
	}
	if !s.now().Before(*user.WakeAt) {
		return Status{}, nil
	}
	return Status{Asleep: true, WakeAt: *user.WakeAt}, nil
}
