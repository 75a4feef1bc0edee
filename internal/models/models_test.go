package models

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		n         int
		want      string
		truncated bool
	}{
		{"hello", 10, "hello", false},
		{"hello", 5, "hello", false},
		{"hello", 3, "hel", true},
		{"привет", 3, "при", true},
		{"", 3, "", false},
		{"abc", 0, "", true},
	}
	for _, tt := range tests {
		got, truncated := Truncate(tt.in, tt.n)
		if got != tt.want || truncated != tt.truncated {
			t.Errorf("Truncate(%q, %d) = %q, %v; want %q, %v", tt.in, tt.n, got, truncated, tt.want, tt.truncated)
		}
	}
}

func TestUserPresence(t *testing.T) {
	t.Parallel()

	u := &User{ID: 1}
	if u.Presence() != Awake {
		t.Errorf("Presence = %q, want awake", u.Presence())
	}
	w := time.Now()
	u.WakeAt = &w
	if u.Presence() != Asleep {
		t.Errorf("Presence = %q, want asleep", u.Presence())
	}
}

func TestCategoryValid(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("%q.Valid() = false", c)
		}
	}
	if Category("news").Valid() {
		t.Error(`"news".Valid() = true`)
	}
}
