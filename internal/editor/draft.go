// Package editor holds an editable copy of the notification preferences. Invalid
// input stays in the draft and is never handed to the reminder engine.
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/tickup/internal/constants"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/models"
	"github.com/julianstephens/tickup/internal/reminder"
	"github.com/julianstephens/tickup/internal/validation"
)

// ErrInvalidDraft is returned when reading or saving a draft that has field errors.
var ErrInvalidDraft = errors.New("preferences have invalid fields")

const (
	FieldDailyTime = "dailyReminderTime"
	FieldLeadTime  = "reminderTime"
)

// Saver accepts validated preferences.
type Saver interface {
	OnPreferencesSaved(ctx context.Context, prefs models.NotificationPreferences) (reminder.Report, error)
}

type Draft struct {
	prefs     models.NotificationPreferences
	dailyText string
	errs      map[string]error
}

func NewDraft(prefs models.NotificationPreferences) *Draft {
	return &Draft{
		prefs:     prefs,
		dailyText: validation.FormatTime12h(prefs.DailyReminderTime),
		errs:      map[string]error{},
	}
}

// DailyTimeText returns the daily reminder time as last entered.
func (d *Draft) DailyTimeText() string {
	return d.dailyText
}

// SetDailyTimeText records the text and, only when it parses, the daily reminder time.
func (d *Draft) SetDailyTimeText(s string) error {
	d.dailyText = s
	t, err := validation.ParseTime12h(s)
	if err != nil {
		d.errs[FieldDailyTime] = err
		return err
	}
	delete(d.errs, FieldDailyTime)
	d.prefs.DailyReminderTime = t
	return nil
}

func (d *Draft) SetReminderLeadMinutes(n int) error {
	if n < 0 || n > constants.MaxReminderLeadMinutes {
		err := apperrors.NewValidationError("reminder lead time", fmt.Sprint(n),
			fmt.Sprintf("must be between 0 and %d minutes", constants.MaxReminderLeadMinutes))
		d.errs[FieldLeadTime] = err
		return err
	}
	delete(d.errs, FieldLeadTime)
	d.prefs.ReminderLeadMinutes = n
	return nil
}

func (d *Draft) SetEnabled(v bool)              { d.prefs.Enabled = v }
func (d *Draft) SetDailyReminderEnabled(v bool) { d.prefs.DailyReminderEnabled = v }
func (d *Draft) SetWeeklySummaryEnabled(v bool) { d.prefs.WeeklySummaryEnabled = v }
func (d *Draft) SetSoundEnabled(v bool)         { d.prefs.SoundEnabled = v }
func (d *Draft) SetVibrationEnabled(v bool)     { d.prefs.VibrationEnabled = v }

// FieldErr returns the held error for one field
func (d *Draft) FieldErr(field string) error {
	return d.errs[field]
}

// Err joins every held field error in field order, or returns nil.
func (d *Draft) Err() error {
	var errs []error
	for _, field := range []string{FieldLeadTime, FieldDailyTime} {
		if err := d.errs[field]; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Draft) Valid() bool {
	return len(d.errs) == 0
}

// Preferences returns the edited preferences. It refuses while any field is invalid.
func (d *Draft) Preferences() (models.NotificationPreferences, error) {
	if err := d.Err(); err != nil {
		return models.NotificationPreferences{}, fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}
	if err := d.prefs.Validate(); err != nil {
		return models.NotificationPreferences{}, fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}
	return d.prefs, nil
}

// Save hands the draft to s if it is valid.
func (d *Draft) Save(ctx context.Context, s Saver) (reminder.Report, error) {
	prefs, err := d.Preferences()
	if err != nil {
		return reminder.Report{}, err
	}
	return s.OnPreferencesSaved(ctx, prefs)
}
