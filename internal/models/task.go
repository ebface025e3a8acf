package models

import "time"

// TaskSnapshot is the read-only view of a task the reminder engine consumes.
type TaskSnapshot struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	DueAt       time.Time `json:"dueAt"`
	IsCompleted bool      `json:"isCompleted"`
}

// ReminderAt returns when the task's reminder should fire for the given lead time
func (t TaskSnapshot) ReminderAt(lead time.Duration) time.Time {
	return t.DueAt.Add(-lead)
}

// NeedsReminder reports whether the task should have a reminder scheduled at now.
func (t TaskSnapshot) NeedsReminder(lead time.Duration, now time.Time) bool {
	if t.IsCompleted || t.DueAt.IsZero() {
		return false
	}
	return t.ReminderAt(lead).After(now)
}
