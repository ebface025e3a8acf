package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/tickup/internal/constants"
	apperrors "github.com/julianstephens/tickup/internal/errors"
)

// TimeOfDay is a wall-clock time stored in 24-hour form.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return apperrors.NewValidationError("hour", fmt.Sprint(t.Hour), "must be between 0 and 23")
	}
	if t.Minute < 0 || t.Minute > 59 {
		return apperrors.NewValidationError("minute", fmt.Sprint(t.Minute), "must be between 0 and 59")
	}
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NotificationPreferences is replaced as a whole on every save.
// JSON field names match what the mobile client writes.
type NotificationPreferences struct {
	Enabled              bool      `json:"enabled"`
	ReminderLeadMinutes  int       `json:"reminderTime"`
	DailyReminderEnabled bool      `json:"dailyReminder"`
	DailyReminderTime    TimeOfDay `json:"dailyReminderTime"`
	WeeklySummaryEnabled bool      `json:"weeklySummary"`
	SoundEnabled         bool      `json:"soundEnabled"`
	VibrationEnabled     bool      `json:"vibrationEnabled"`
}

func (p NotificationPreferences) Validate() error {
	if p.ReminderLeadMinutes < 0 {
		return apperrors.NewValidationError("reminder lead time", fmt.Sprint(p.ReminderLeadMinutes), "must be zero or more minutes")
	}
	if p.ReminderLeadMinutes > constants.MaxReminderLeadMinutes {
		return apperrors.NewValidationError("reminder lead time", fmt.Sprint(p.ReminderLeadMinutes),
			fmt.Sprintf("must be at most %d minutes", constants.MaxReminderLeadMinutes))
	}
	if err := p.DailyReminderTime.Validate(); err != nil {
		return err
	}
	return nil
}

// LeadTime returns the reminder lead as a duration, clamped to the valid range.
func (p NotificationPreferences) LeadTime() time.Duration {
	minutes := min(max(p.ReminderLeadMinutes, 0), constants.MaxReminderLeadMinutes)
	return time.Duration(minutes) * time.Minute
}
