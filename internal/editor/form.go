package editor

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// formModel holds the raw values bound to the form fields
type formModel struct {
	Enabled       bool
	LeadMinutes   string
	DailyEnabled  bool
	DailyTime     string
	WeeklyEnabled bool
	Sound         bool
	Vibration     bool
}

// Form builds an interactive form over the draft. Each edit to the daily time is
// validated as it is typed and only a valid time reaches the draft.
func (d *Draft) Form() *huh.Form {
	fm := &formModel{
		Enabled:       d.prefs.Enabled,
		LeadMinutes:   strconv.Itoa(d.prefs.ReminderLeadMinutes),
		DailyEnabled:  d.prefs.DailyReminderEnabled,
		DailyTime:     d.dailyText,
		WeeklyEnabled: d.prefs.WeeklySummaryEnabled,
		Sound:         d.prefs.SoundEnabled,
		Vibration:     d.prefs.VibrationEnabled,
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Notifications").
				Affirmative("On").
				Negative("Off").
				Value(&fm.Enabled).
				Validate(func(v bool) error {
					d.SetEnabled(v)
					return nil
				}),
			huh.NewInput().
				Title("Remind me (minutes before due)").
				Value(&fm.LeadMinutes).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return fmt.Errorf("enter a whole number of minutes")
					}
					return d.SetReminderLeadMinutes(n)
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Daily reminder").
				Value(&fm.DailyEnabled).
				Validate(func(v bool) error {
					d.SetDailyReminderEnabled(v)
					return nil
				}),
			huh.NewInput().
				Title("Daily reminder time").
				Description("e.g. 9:00 AM").
				Value(&fm.DailyTime).
				Validate(d.SetDailyTimeText),
			huh.NewConfirm().
				Title("Weekly summary (Sundays at 6:00 PM)").
				Value(&fm.WeeklyEnabled).
				Validate(func(v bool) error {
					d.SetWeeklySummaryEnabled(v)
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Sound").
				Value(&fm.Sound).
				Validate(func(v bool) error {
					d.SetSoundEnabled(v)
					return nil
				}),
			huh.NewConfirm().
				Title("Vibration").
				Value(&fm.Vibration).
				Validate(func(v bool) error {
					d.SetVibrationEnabled(v)
					return nil
				}),
		),
	).
		WithTheme(huh.ThemeDracula()).
		WithProgramOptions(tea.WithAltScreen())
}
