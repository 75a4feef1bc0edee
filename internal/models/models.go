package models

import "time"

// Category is the single label assigned to a triaged message.
type Category string

const (
	CategoryUrgent Category = "urgent"
	CategoryWork   Category = "work"
	CategoryFamily Category = "family"
	CategorySpam   Category = "spam"
	CategoryOther  Category = "other"
)

// Categories lists every category in canonical display order.
var Categories = []Category{
	CategoryUrgent,
	CategoryWork,
	CategoryFamily,
	CategorySpam,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// MaxTextLength bounds the stored text of a message, in characters.
const MaxTextLength = 200

// Presence is a user's availability state.
type Presence string

const (
	Awake  Presence = "awake"
	Asleep Presence = "asleep"
)

// User represents a bot user. A user is asleep exactly when WakeAt is set.
type User struct {
	ID          int64      `json:"id"`
	Handle      string     `json:"handle,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	WakeAt      *time.Time `json:"wake_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Presence returns the stored presence state, without looking at the clock.
func (u *User) Presence() Presence {
	if u.WakeAt != nil {
		return Asleep
	}
	return Awake
}

// MessageRecord is an archived, classified message.
type MessageRecord struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	Text         string    `json:"text"`
	SenderLabel  string    `json:"sender_label"`
	Category     Category  `json:"category"`
	UrgencyScore int       `json:"urgency_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// CategoryCount is one row of an aggregation by category.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Truncate cuts s to at most n characters (runes, not bytes) and reports
// whether anything was removed.
func Truncate(s string, n int) (string, bool) {
	if n < 0 {
		n = 0
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
