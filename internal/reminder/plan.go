package reminder

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/julianstephens/tickup/internal/alerts"
	"github.com/julianstephens/tickup/internal/constants"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
)

// Alert lines
const (
	LineTask   = constants.LineTask
	LineDaily  = constants.LineDaily
	LineWeekly = constants.LineWeekly
)

// Payload data types
const (
	TypeTaskReminder  = constants.AlertTypeTaskReminder
	TypeDailyReminder = constants.AlertTypeDailyReminder
	TypeWeeklySummary = constants.AlertTypeWeeklySummary
	TypeTest          = constants.AlertTypeTest
)

// desired is an alert that should be scheduled
type desired struct {
	payload     alerts.Payload
	trigger     alerts.Trigger
	fingerprint uint64
}

// action is the work needed to bring one alert line in line with its desired state.
// A replacement cancels first and schedules only if the cancel succeeded.
type action struct {
	line     string
	taskID   string
	cancel   string
	schedule *desired
}

func (a action) String() string {
	if a.taskID != "" {
		return fmt.Sprintf("%s:%s", a.line, a.taskID)
	}
	return a.line
}

func fingerprint(p alerts.Payload) (uint64, error) {
	return hashstructure.Hash(p, hashstructure.FormatV2, nil)
}

func newDesired(p alerts.Payload, t alerts.Trigger) (*desired, error) {
	fp, err := fingerprint(p)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint alert: %w", err)
	}
	return &desired{payload: p, trigger: t, fingerprint: fp}, nil
}

// TaskPayload builds the reminder payload for a task.
func TaskPayload(task models.TaskSnapshot, prefs models.NotificationPreferences) alerts.Payload {
	return alerts.Payload{
		Title:   constants.TaskReminderTitle,
		Body:    fmt.Sprintf(constants.TaskReminderBody, task.Title, prefs.ReminderLeadMinutes),
		Sound:   prefs.SoundEnabled,
		Vibrate: prefs.VibrationEnabled,
		Data: map[string]string{
			"type":   TypeTaskReminder,
			"taskId": task.ID,
			"title":  task.Title,
		},
	}
}

func DailyPayload(prefs models.NotificationPreferences) alerts.Payload {
	return alerts.Payload{
		Title:   constants.DailyReminderTitle,
		Body:    constants.DailyReminderBody,
		Sound:   prefs.SoundEnabled,
		Vibrate: prefs.VibrationEnabled,
		Data:    map[string]string{"type": TypeDailyReminder},
	}
}

func WeeklyPayload(prefs models.NotificationPreferences) alerts.Payload {
	return alerts.Payload{
		Title:   constants.WeeklySummaryTitle,
		Body:    constants.WeeklySummaryBody,
		Sound:   prefs.SoundEnabled,
		Vibrate: prefs.VibrationEnabled,
		Data:    map[string]string{"type": TypeWeeklySummary},
	}
}

func TestPayload(prefs models.NotificationPreferences) alerts.Payload {
	return alerts.Payload{
		Title:   constants.TestAlertTitle,
		Body:    constants.TestAlertBody,
		Sound:   prefs.SoundEnabled,
		Vibrate: prefs.VibrationEnabled,
		Data:    map[string]string{"type": TypeTest},
	}
}

// desiredTasks returns the reminders that should exist for tasks at now, keyed by task id.
func desiredTasks(tasks []models.TaskSnapshot, prefs models.NotificationPreferences, now time.Time) (map[string]*desired, error) {
	lead := prefs.LeadTime()
	out := make(map[string]*desired, len(tasks))
	for _, task := range tasks {
		if task.ID == "" {
			continue
		}
		if _, dup := out[task.ID]; dup {
			logger.Warn("Ignoring duplicate task in snapshot", "task", task.ID)
			continue
		}
		if !task.NeedsReminder(lead, now) {
			continue
		}
		d, err := newDesired(TaskPayload(task, prefs), alerts.OneShot(task.ReminderAt(lead)))
		if err != nil {
			return nil, err
		}
		out[task.ID] = d
	}
	return out, nil
}

// planTasks diffs the desired task reminders against the index.
func planTasks(index models.ScheduledAlertIndex, want map[string]*desired) []action {
	var actions []action

	for _, id := range index.TaskIDs() {
		entry := index.Tasks[id]
		d, ok := want[id]
		switch {
		case !ok:
			actions = append(actions, action{line: LineTask, taskID: id, cancel: entry.Handle})
		case entry.FireAt.Equal(d.trigger.At) && entry.Fingerprint == d.fingerprint:
			// already scheduled as wanted
		default:
			actions = append(actions, action{line: LineTask, taskID: id, cancel: entry.Handle, schedule: d})
		}
	}

	for id, d := range want {
		if _, ok := index.Tasks[id]; !ok {
			actions = append(actions, action{line: LineTask, taskID: id, schedule: d})
		}
	}
	return actions
}

// planRecurring diffs one recurring line. want is nil when the line is disabled.
func planRecurring(line string, current *models.RecurringAlert, want *desired) []action {
	if want == nil {
		if current == nil {
			return nil
		}
		return []action{{line: line, cancel: current.Handle}}
	}

	t := want.trigger
	var weekday *time.Weekday
	if t.Kind == alerts.KindWeekly {
		wd := t.Weekday
		weekday = &wd
	}
	if current.Matches(t.Hour, t.Minute, weekday, want.fingerprint) {
		return nil
	}

	a := action{line: line, schedule: want}
	if current != nil {
		a.cancel = current.Handle
	}
	return []action{a}
}

// planLines diffs the daily and weekly lines against prefs.
func planLines(index models.ScheduledAlertIndex, prefs models.NotificationPreferences) ([]action, error) {
	var daily, weekly *desired
	var err error

	if prefs.DailyReminderEnabled {
		at := prefs.DailyReminderTime
		daily, err = newDesired(DailyPayload(prefs), alerts.Daily(at.Hour, at.Minute))
		if err != nil {
			return nil, err
		}
	}
	if prefs.WeeklySummaryEnabled {
		weekly, err = newDesired(WeeklyPayload(prefs), alerts.Weekly(constants.WeeklySummaryWeekday, constants.WeeklySummaryHour, constants.WeeklySummaryMinute))
		if err != nil {
			return nil, err
		}
	}

	actions := planRecurring(LineDaily, index.Daily, daily)
	return append(actions, planRecurring(LineWeekly, index.Weekly, weekly)...), nil
}

// planDisable cancels every handle in the index.
func planDisable(index models.ScheduledAlertIndex) []action {
	var actions []action
	for _, id := range index.TaskIDs() {
		actions = append(actions, action{line: LineTask, taskID: id, cancel: index.Tasks[id].Handle})
	}
	if index.Daily != nil {
		actions = append(actions, action{line: LineDaily, cancel: index.Daily.Handle})
	}
	if index.Weekly != nil {
		actions = append(actions, action{line: LineWeekly, cancel: index.Weekly.Handle})
	}
	return actions
}
