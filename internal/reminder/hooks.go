package reminder

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/julianstephens/tickup/internal/alerts"
	"github.com/julianstephens/tickup/internal/constants"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
)

// OnTaskCompleted cancels the reminder for a task that was marked done.
func (e *Engine) OnTaskCompleted(ctx context.Context, taskID string) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return Report{}, err
	}

	for i := range e.lastTasks {
		if e.lastTasks[i].ID == taskID {
			e.lastTasks[i].IsCompleted = true
		}
	}
	return e.cancelTaskLocked(ctx, taskID)
}

// OnTaskDeleted cancels the reminder for a task that no longer exists.
func (e *Engine) OnTaskDeleted(ctx context.Context, taskID string) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return Report{}, err
	}

	kept := e.lastTasks[:0]
	for _, t := range e.lastTasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	e.lastTasks = kept
	return e.cancelTaskLocked(ctx, taskID)
}

func (e *Engine) cancelTaskLocked(ctx context.Context, taskID string) (Report, error) {
	entry, ok := e.index.Tasks[taskID]
	if !ok {
		return Report{}, nil
	}

	var report Report
	err := e.call(ctx, func(ctx context.Context) error {
		return e.scheduler.Cancel(ctx, entry.Handle)
	})
	if err != nil && !errors.Is(err, alerts.ErrUnknownHandle) {
		logger.Warn("Failed to cancel task reminder", "task", taskID, "handle", entry.Handle, "error", err)
		report.Failures = append(report.Failures, &apperrors.SchedulerError{Op: "cancel", Line: LineTask, TaskID: taskID, Err: err})
		return report, nil
	}

	index := e.index.Clone()
	delete(index.Tasks, taskID)
	e.index = index
	report.Canceled++

	return report, e.persist(e.prefs, index)
}

// OnPreferencesSaved validates and stores new preferences, then reconciles against the
// most recent task snapshot. Without any snapshot only the daily and weekly lines are
// reconciled.
func (e *Engine) OnPreferencesSaved(ctx context.Context, prefs models.NotificationPreferences) (Report, error) {
	if err := prefs.Validate(); err != nil {
		return Report{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return Report{}, err
	}

	data, err := json.Marshal(prefs)
	if err != nil {
		return Report{}, err
	}
	if err := e.store.Set(constants.KeyNotificationPreferences, data); err != nil {
		return Report{}, &apperrors.PersistenceError{Op: "write", Key: constants.KeyNotificationPreferences, Err: err}
	}
	e.prefs = prefs

	tasks, ok := e.snapshotLocked(ctx)
	return e.reconcileLocked(ctx, tasks, prefs, ok)
}

// snapshotLocked returns the last known tasks, fetching them if none were seen yet.
func (e *Engine) snapshotLocked(ctx context.Context) ([]models.TaskSnapshot, bool) {
	if e.haveTasks {
		return e.lastTasks, true
	}
	if e.lister == nil {
		return nil, false
	}

	tasks, err := e.lister.Tasks(ctx)
	if err != nil {
		logger.Warn("Failed to fetch tasks, reconciling daily and weekly alerts only", "error", err)
		return nil, false
	}
	e.rememberTasks(tasks)
	return tasks, true
}

// Sender delivers a payload immediately
type Sender interface {
	SendNow(ctx context.Context, payload alerts.Payload) error
}

// SendTest delivers a test alert using the current sound and vibration settings.
func (e *Engine) SendTest(ctx context.Context, sender Sender) error {
	prefs, err := e.Preferences()
	if err != nil {
		return err
	}
	return sender.SendNow(ctx, TestPayload(prefs))
}
