package reminder

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/tickup/internal/alerts"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
)

// outcome is the result of running one action
type outcome struct {
	action    action
	canceled  bool
	cancelErr error
	handle    string
	schedErr  error
}

// ReconcileAll brings the scheduled alerts in line with tasks and prefs, then persists
// both prefs and the resulting index. Individual scheduler failures are collected in the
// report and never abort the pass.
func (e *Engine) ReconcileAll(ctx context.Context, tasks []models.TaskSnapshot, prefs models.NotificationPreferences) (Report, error) {
	if err := prefs.Validate(); err != nil {
		return Report{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return Report{}, err
	}

	e.rememberTasks(tasks)
	return e.reconcileLocked(ctx, tasks, prefs, true)
}

// Reconcile runs ReconcileAll with the preferences currently in effect.
func (e *Engine) Reconcile(ctx context.Context, tasks []models.TaskSnapshot) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return Report{}, err
	}

	e.rememberTasks(tasks)
	return e.reconcileLocked(ctx, tasks, e.prefs, true)
}

// Refresh fetches tasks from the configured lister and reconciles against them.
func (e *Engine) Refresh(ctx context.Context) (Report, error) {
	if e.lister == nil {
		return Report{}, errors.New("no task source configured")
	}
	tasks, err := e.lister.Tasks(ctx)
	if err != nil {
		return Report{}, err
	}
	return e.Reconcile(ctx, tasks)
}

// ReconcileLines reconciles only the daily and weekly alerts, leaving task reminders alone.
func (e *Engine) ReconcileLines(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return Report{}, err
	}
	return e.reconcileLocked(ctx, nil, e.prefs, false)
}

// reconcileLocked requires e.mu. When withTasks is false the per-task entries are left alone.
func (e *Engine) reconcileLocked(ctx context.Context, tasks []models.TaskSnapshot, prefs models.NotificationPreferences, withTasks bool) (Report, error) {
	index := e.index.Clone()
	var report Report

	if !prefs.Enabled {
		e.disable(ctx, &index, &report)
	} else {
		var actions []action
		if withTasks {
			want, err := desiredTasks(tasks, prefs, e.now())
			if err != nil {
				return report, err
			}
			actions = planTasks(index, want)
		}
		lines, err := planLines(index, prefs)
		if err != nil {
			return report, err
		}
		actions = append(actions, lines...)

		apply(&index, &report, e.run(ctx, actions))
	}

	// the in-memory index tracks what the scheduler holds even if the write below fails
	e.index = index
	e.prefs = prefs

	logger.Debug("Reconciled alerts", "scheduled", report.Scheduled, "canceled", report.Canceled, "failures", len(report.Failures))
	if err := e.persist(prefs, index); err != nil {
		return report, err
	}
	return report, nil
}

// disable cancels every indexed handle. If any cancel fails a single CancelAll is tried.
func (e *Engine) disable(ctx context.Context, index *models.ScheduledAlertIndex, report *Report) {
	actions := planDisable(*index)
	if len(actions) == 0 {
		return
	}

	var failed []outcome
	for _, out := range e.run(ctx, actions) {
		if out.canceled {
			removeEntry(index, out.action)
			report.Canceled++
			continue
		}
		failed = append(failed, out)
	}
	if len(failed) == 0 {
		return
	}

	err := e.call(ctx, func(ctx context.Context) error {
		return e.scheduler.CancelAll(ctx)
	})
	if err != nil {
		logger.Warn("Failed to cancel all alerts", "error", err)
		for _, out := range failed {
			report.Failures = append(report.Failures, &apperrors.SchedulerError{Op: "cancel", Line: out.action.line, TaskID: out.action.taskID, Err: out.cancelErr})
		}
		report.Failures = append(report.Failures, &apperrors.SchedulerError{Op: "cancel_all", Err: err})
		return
	}

	for _, out := range failed {
		removeEntry(index, out.action)
		report.Canceled++
	}
}

// run executes actions with bounded concurrency. Results are returned in action order.
func (e *Engine) run(ctx context.Context, actions []action) []outcome {
	results := make([]outcome, len(actions))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, a := range actions {
		g.Go(func() error {
			results[i] = e.runAction(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) runAction(ctx context.Context, a action) outcome {
	out := outcome{action: a}

	if a.cancel != "" {
		err := e.call(ctx, func(ctx context.Context) error {
			return e.scheduler.Cancel(ctx, a.cancel)
		})
		if err != nil && !errors.Is(err, alerts.ErrUnknownHandle) {
			logger.Warn("Failed to cancel alert", "alert", a.String(), "handle", a.cancel, "error", err)
			out.cancelErr = err
			// keep the old entry and skip the replacement so the next pass retries
			return out
		}
		out.canceled = true
	}

	if a.schedule != nil {
		handle, err := e.schedule(ctx, a.schedule)
		if err != nil {
			logger.Warn("Failed to schedule alert", "alert", a.String(), "error", err)
			out.schedErr = err
			return out
		}
		out.handle = handle
		logger.Debug("Scheduled alert", "alert", a.String(), "handle", handle, "trigger", a.schedule.trigger.String())
	}
	return out
}

// call runs fn with the per-item timeout. A call that ignores its context still
// returns once the timeout elapses.
func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule is call for Schedule. A handle that arrives after the timeout is canceled.
func (e *Engine) schedule(ctx context.Context, d *desired) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	type result struct {
		handle string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		handle, err := e.scheduler.Schedule(ctx, d.payload, d.trigger)
		done <- result{handle, err}
	}()

	select {
	case r := <-done:
		return r.handle, r.err
	case <-ctx.Done():
		e.late.Add(1)
		go func() {
			defer e.late.Done()
			r := <-done
			if r.err != nil || r.handle == "" {
				return
			}
			logger.Warn("Canceling alert scheduled after timeout", "handle", r.handle)
			if err := e.call(context.Background(), func(ctx context.Context) error {
				return e.scheduler.Cancel(ctx, r.handle)
			}); err != nil && !errors.Is(err, alerts.ErrUnknownHandle) {
				logger.Error("Failed to cancel late alert", "handle", r.handle, "error", err)
			}
		}()
		return "", ctx.Err()
	}
}

// apply folds outcomes into the index and report.
func apply(index *models.ScheduledAlertIndex, report *Report, outcomes []outcome) {
	for _, out := range outcomes {
		a := out.action

		if a.cancel != "" {
			if !out.canceled {
				report.Failures = append(report.Failures, &apperrors.SchedulerError{Op: "cancel", Line: a.line, TaskID: a.taskID, Err: out.cancelErr})
				continue
			}
			removeEntry(index, a)
			report.Canceled++
		}

		if a.schedule == nil {
			continue
		}
		if out.schedErr != nil {
			report.Failures = append(report.Failures, &apperrors.SchedulerError{Op: "schedule", Line: a.line, TaskID: a.taskID, Err: out.schedErr})
			continue
		}
		addEntry(index, a, out.handle)
		report.Scheduled++
	}
}

func removeEntry(index *models.ScheduledAlertIndex, a action) {
	switch a.line {
	case LineTask:
		delete(index.Tasks, a.taskID)
	case LineDaily:
		index.Daily = nil
	case LineWeekly:
		index.Weekly = nil
	}
}

func addEntry(index *models.ScheduledAlertIndex, a action, handle string) {
	d := a.schedule
	switch a.line {
	case LineTask:
		index.Tasks[a.taskID] = models.TaskAlert{Handle: handle, FireAt: d.trigger.At, Fingerprint: d.fingerprint}
	case LineDaily:
		index.Daily = &models.RecurringAlert{Handle: handle, Hour: d.trigger.Hour, Minute: d.trigger.Minute, Fingerprint: d.fingerprint}
	case LineWeekly:
		wd := d.trigger.Weekday
		index.Weekly = &models.RecurringAlert{Handle: handle, Hour: d.trigger.Hour, Minute: d.trigger.Minute, Weekday: &wd, Fingerprint: d.fingerprint}
	}
}
