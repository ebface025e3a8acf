package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TaskAlert records a scheduled one-shot task reminder.
type TaskAlert struct {
	Handle      string    `json:"handle"`
	FireAt      time.Time `json:"fireAt"`
	Fingerprint uint64    `json:"fingerprint,omitempty"`
}

// RecurringAlert records a scheduled daily or weekly alert and the rule it was scheduled with.
// Weekday is nil for daily alerts.
type RecurringAlert struct {
	Handle      string        `json:"handle"`
	Hour        int           `json:"hour"`
	Minute      int           `json:"minute"`
	Weekday     *time.Weekday `json:"weekday,omitempty"`
	Fingerprint uint64        `json:"fingerprint,omitempty"`
	// Legacy is set for handles loaded without their rule; they never match.
	Legacy bool `json:"legacy,omitempty"`
}

// Matches reports whether the alert was scheduled for the given rule.
func (r *RecurringAlert) Matches(hour, minute int, weekday *time.Weekday, fingerprint uint64) bool {
	if r == nil || r.Legacy {
		return false
	}
	if r.Hour != hour || r.Minute != minute || r.Fingerprint != fingerprint {
		return false
	}
	if (r.Weekday == nil) != (weekday == nil) {
		return false
	}
	return weekday == nil || *r.Weekday == *weekday
}

// ScheduledAlertIndex maps task ids to their reminder handles plus the two singleton lines.
type ScheduledAlertIndex struct {
	Tasks  map[string]TaskAlert
	Daily  *RecurringAlert
	Weekly *RecurringAlert
}

// NewScheduledAlertIndex returns an empty index
func NewScheduledAlertIndex() ScheduledAlertIndex {
	return ScheduledAlertIndex{Tasks: map[string]TaskAlert{}}
}

// Clone returns a deep copy of the index
func (idx ScheduledAlertIndex) Clone() ScheduledAlertIndex {
	out := NewScheduledAlertIndex()
	for id, a := range idx.Tasks {
		out.Tasks[id] = a
	}
	if idx.Daily != nil {
		d := *idx.Daily
		out.Daily = &d
	}
	if idx.Weekly != nil {
		w := *idx.Weekly
		out.Weekly = &w
	}
	return out
}

// Len returns the number of handles held by the index
func (idx ScheduledAlertIndex) Len() int {
	n := len(idx.Tasks)
	if idx.Daily != nil {
		n++
	}
	if idx.Weekly != nil {
		n++
	}
	return n
}

// IsEmpty reports whether the index holds no handles
func (idx ScheduledAlertIndex) IsEmpty() bool {
	return idx.Len() == 0
}

// TaskIDs returns the indexed task ids in sorted order
func (idx ScheduledAlertIndex) TaskIDs() []string {
	ids := make([]string, 0, len(idx.Tasks))
	for id := range idx.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EncodeTaskAlerts serializes the per-task map for the taskNotificationIds key
func EncodeTaskAlerts(tasks map[string]TaskAlert) ([]byte, error) {
	if tasks == nil {
		tasks = map[string]TaskAlert{}
	}
	return json.Marshal(tasks)
}

// DecodeTaskAlerts parses the taskNotificationIds value. Entries written by the mobile
// client are bare handle strings; those decode with a zero FireAt.
func DecodeTaskAlerts(data []byte) (map[string]TaskAlert, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode task alert index: %w", err)
	}

	out := make(map[string]TaskAlert, len(raw))
	for id, value := range raw {
		var handle string
		if err := json.Unmarshal(value, &handle); err == nil {
			if handle != "" {
				out[id] = TaskAlert{Handle: handle}
			}
			continue
		}
		var alert TaskAlert
		if err := json.Unmarshal(value, &alert); err != nil {
			return nil, fmt.Errorf("failed to decode alert for task %s: %w", id, err)
		}
		if alert.Handle != "" {
			out[id] = alert
		}
	}
	return out, nil
}

// EncodeRecurringAlert serializes a daily or weekly slot
func EncodeRecurringAlert(alert *RecurringAlert) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeRecurringAlert parses a daily or weekly slot. A value that is not a JSON
// object is taken as a raw handle from the mobile client.
func DecodeRecurringAlert(data []byte) (*RecurringAlert, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var alert RecurringAlert
		if err := json.Unmarshal([]byte(trimmed), &alert); err != nil {
			return nil, fmt.Errorf("failed to decode recurring alert: %w", err)
		}
		if alert.Handle == "" {
			return nil, nil
		}
		return &alert, nil
	}

	handle := trimmed
	var quoted string
	if err := json.Unmarshal([]byte(trimmed), &quoted); err == nil {
		handle = quoted
	}
	if handle == "" {
		return nil, nil
	}
	return &RecurringAlert{Handle: handle, Legacy: true}, nil
}
