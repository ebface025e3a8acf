package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tickup/internal/cli"
	"github.com/julianstephens/tickup/internal/editor"
	"github.com/julianstephens/tickup/internal/models"
	"github.com/julianstephens/tickup/internal/validation"
)

type ShowCmd struct{}

func (c *ShowCmd) Run(ctx *cli.Context) error {
	prefs, err := ctx.Engine.Preferences()
	if err != nil {
		return fmt.Errorf("failed to get preferences: %w", err)
	}

	fmt.Println(cli.RenderTable([]string{"Setting", "Value"}, Rows(prefs)))
	return nil
}

// Rows lists preferences as table rows
func Rows(p models.NotificationPreferences) [][]string {
	return [][]string{
		{"Notifications", onOff(p.Enabled)},
		{"Task reminder lead", strconv.Itoa(p.ReminderLeadMinutes) + " min"},
		{"Daily reminder", onOff(p.DailyReminderEnabled)},
		{"Daily reminder time", validation.FormatTime12h(p.DailyReminderTime)},
		{"Weekly summary", onOff(p.WeeklySummaryEnabled)},
		{"Sound", onOff(p.SoundEnabled)},
		{"Vibration", onOff(p.VibrationEnabled)},
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

type SetCmd struct {
	Enabled   *bool   `help:"Master switch for all alerts."`
	Lead      *int    `help:"Minutes before a task is due to remind."`
	Daily     *bool   `help:"Enable the daily reminder."`
	DailyTime *string `name:"daily-time" help:"Daily reminder time, e.g. \"7:30 AM\"."`
	Weekly    *bool   `help:"Enable the weekly summary."`
	Sound     *bool   `help:"Play a sound with alerts."`
	Vibration *bool   `help:"Vibrate with alerts."`
}

func (c *SetCmd) Run(ctx *cli.Context) error {
	current, err := ctx.Engine.Preferences()
	if err != nil {
		return fmt.Errorf("failed to get preferences: %w", err)
	}

	draft := editor.NewDraft(current)
	updated := false
	if c.Enabled != nil {
		draft.SetEnabled(*c.Enabled)
		updated = true
	}
	if c.Lead != nil {
		// errors stay on the draft and are reported by Save
		_ = draft.SetReminderLeadMinutes(*c.Lead)
		updated = true
	}
	if c.Daily != nil {
		draft.SetDailyReminderEnabled(*c.Daily)
		updated = true
	}
	if c.DailyTime != nil {
		_ = draft.SetDailyTimeText(*c.DailyTime)
		updated = true
	}
	if c.Weekly != nil {
		draft.SetWeeklySummaryEnabled(*c.Weekly)
		updated = true
	}
	if c.Sound != nil {
		draft.SetSoundEnabled(*c.Sound)
		updated = true
	}
	if c.Vibration != nil {
		draft.SetVibrationEnabled(*c.Vibration)
		updated = true
	}

	if !updated {
		fmt.Println("No changes specified. Use 'tickup prefs show' to view preferences or flags to update them.")
		return nil
	}

	return save(ctx, draft)
}

type EditCmd struct{}

func (c *EditCmd) Run(ctx *cli.Context) error {
	current, err := ctx.Engine.Preferences()
	if err != nil {
		return fmt.Errorf("failed to get preferences: %w", err)
	}

	draft := editor.NewDraft(current)
	if err := draft.Form().Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Edit canceled. Preferences unchanged.")
			return nil
		}
		return err
	}

	return save(ctx, draft)
}

func save(ctx *cli.Context, draft *editor.Draft) error {
	report, err := draft.Save(context.Background(), ctx.Engine)
	if err != nil {
		if errors.Is(err, editor.ErrInvalidDraft) {
			return fmt.Errorf("preferences not saved: %w", err)
		}
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	fmt.Println("Preferences updated successfully.")
	fmt.Println(cli.FormatReport(report))
	return nil
}
