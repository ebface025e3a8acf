// Package reminder keeps scheduled alerts in line with the user's tasks and
// notification preferences.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/tickup/internal/alerts"
	"github.com/julianstephens/tickup/internal/constants"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
	"github.com/julianstephens/tickup/internal/storage"
)

// TaskLister supplies a task snapshot when the engine has not been given one.
type TaskLister interface {
	Tasks(ctx context.Context) ([]models.TaskSnapshot, error)
}

// DefaultPreferences returns the preferences used on first run.
func DefaultPreferences() models.NotificationPreferences {
	return models.NotificationPreferences{
		Enabled:              constants.DefaultNotificationsEnabled,
		ReminderLeadMinutes:  constants.DefaultReminderLeadMinutes,
		DailyReminderEnabled: constants.DefaultDailyReminderEnabled,
		DailyReminderTime:    models.TimeOfDay{Hour: constants.DefaultDailyReminderHour, Minute: constants.DefaultDailyReminderMinute},
		WeeklySummaryEnabled: constants.DefaultWeeklySummaryEnabled,
		SoundEnabled:         constants.DefaultSoundEnabled,
		VibrationEnabled:     constants.DefaultVibrationEnabled,
	}
}

// Report summarizes the scheduler calls made by one operation.
type Report struct {
	Scheduled int
	Canceled  int
	Failures  []error
}

// Err joins the per-item failures, or returns nil if there were none
func (r Report) Err() error {
	return errors.Join(r.Failures...)
}

// Changed reports whether any alert was scheduled or canceled
func (r Report) Changed() bool {
	return r.Scheduled > 0 || r.Canceled > 0
}

// Engine owns the notification preferences and the index of scheduled alerts.
// All operations are serialized.
type Engine struct {
	store       storage.Store
	scheduler   alerts.Scheduler
	lister      TaskLister
	now         func() time.Time
	itemTimeout time.Duration
	concurrency int

	mu        sync.Mutex
	loaded    bool
	prefs     models.NotificationPreferences
	index     models.ScheduledAlertIndex
	lastTasks []models.TaskSnapshot
	haveTasks bool

	// late tracks goroutines cleaning up after timed-out schedule calls
	late sync.WaitGroup
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithItemTimeout bounds each individual scheduler call
func WithItemTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.itemTimeout = d
		}
	}
}

// WithConcurrency bounds how many scheduler calls run at once
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithTaskLister(l TaskLister) Option {
	return func(e *Engine) { e.lister = l }
}

func New(store storage.Store, scheduler alerts.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		scheduler:   scheduler,
		now:         time.Now,
		itemTimeout: constants.DefaultItemTimeout,
		concurrency: constants.DefaultConcurrency,
		prefs:       DefaultPreferences(),
		index:       models.NewScheduledAlertIndex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads the persisted preferences and alert index. Defaults are written on first run.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return e.ensureLoaded()
}

func (e *Engine) ensureLoaded() error {
	if e.loaded {
		return nil
	}

	prefs, found, err := e.readPreferences()
	if err != nil {
		return err
	}
	if !found {
		data, err := json.Marshal(prefs)
		if err != nil {
			return err
		}
		if err := e.store.Set(constants.KeyNotificationPreferences, data); err != nil {
			return &apperrors.PersistenceError{Op: "write", Key: constants.KeyNotificationPreferences, Err: err}
		}
		logger.Info("Initialized default notification preferences")
	}

	index, err := e.readIndex()
	if err != nil {
		return err
	}

	e.prefs = prefs
	e.index = index
	e.loaded = true
	logger.Debug("Loaded reminder state", "enabled", prefs.Enabled, "alerts", index.Len())
	return nil
}

func (e *Engine) readPreferences() (models.NotificationPreferences, bool, error) {
	prefs := DefaultPreferences()

	data, err := e.store.Get(constants.KeyNotificationPreferences)
	if errors.Is(err, storage.ErrNotFound) {
		return prefs, false, nil
	}
	if err != nil {
		return prefs, false, &apperrors.PersistenceError{Op: "read", Key: constants.KeyNotificationPreferences, Err: err}
	}

	// Unmarshal over the defaults so fields missing from older records keep their default
	if err := json.Unmarshal(data, &prefs); err != nil {
		logger.Warn("Stored notification preferences are unreadable, using defaults", "error", err)
		return DefaultPreferences(), true, nil
	}
	if err := prefs.Validate(); err != nil {
		logger.Warn("Stored notification preferences are invalid, using defaults", "error", err)
		return DefaultPreferences(), true, nil
	}
	return prefs, true, nil
}

func (e *Engine) readIndex() (models.ScheduledAlertIndex, error) {
	index := models.NewScheduledAlertIndex()

	data, err := e.get(constants.KeyTaskNotificationIDs)
	if err != nil {
		return index, err
	}
	if len(data) > 0 {
		tasks, err := models.DecodeTaskAlerts(data)
		if err != nil {
			return index, &apperrors.PersistenceError{Op: "decode", Key: constants.KeyTaskNotificationIDs, Err: err}
		}
		index.Tasks = tasks
	}

	for _, slot := range []struct {
		key string
		dst **models.RecurringAlert
	}{
		{constants.KeyDailyReminderID, &index.Daily},
		{constants.KeyWeeklySummaryID, &index.Weekly},
	} {
		data, err := e.get(slot.key)
		if err != nil {
			return index, err
		}
		alert, err := models.DecodeRecurringAlert(data)
		if err != nil {
			return index, &apperrors.PersistenceError{Op: "decode", Key: slot.key, Err: err}
		}
		*slot.dst = alert
	}

	return index, nil
}

// get returns nil without error for an absent key
func (e *Engine) get(key string) ([]byte, error) {
	data, err := e.store.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &apperrors.PersistenceError{Op: "read", Key: key, Err: err}
	}
	return data, nil
}

// persist writes the preferences and the whole index in one batch.
func (e *Engine) persist(prefs models.NotificationPreferences, index models.ScheduledAlertIndex) error {
	batch := storage.NewBatch()

	prefsData, err := json.Marshal(prefs)
	if err != nil {
		return &apperrors.PersistenceError{Op: "encode", Key: constants.KeyNotificationPreferences, Err: err}
	}
	batch.Put(constants.KeyNotificationPreferences, prefsData)

	tasksData, err := models.EncodeTaskAlerts(index.Tasks)
	if err != nil {
		return &apperrors.PersistenceError{Op: "encode", Key: constants.KeyTaskNotificationIDs, Err: err}
	}
	batch.Put(constants.KeyTaskNotificationIDs, tasksData)

	for key, alert := range map[string]*models.RecurringAlert{
		constants.KeyDailyReminderID: index.Daily,
		constants.KeyWeeklySummaryID: index.Weekly,
	} {
		if alert == nil {
			batch.Delete(key)
			continue
		}
		data, err := models.EncodeRecurringAlert(alert)
		if err != nil {
			return &apperrors.PersistenceError{Op: "encode", Key: key, Err: err}
		}
		batch.Put(key, data)
	}

	if err := e.store.Commit(batch); err != nil {
		logger.Error("Failed to persist reminder state", "error", err)
		return &apperrors.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// Preferences returns the preferences currently in effect.
func (e *Engine) Preferences() (models.NotificationPreferences, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return models.NotificationPreferences{}, err
	}
	return e.prefs, nil
}

// Index returns a copy of the scheduled alert index.
func (e *Engine) Index() (models.ScheduledAlertIndex, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return models.ScheduledAlertIndex{}, err
	}
	return e.index.Clone(), nil
}

func (e *Engine) rememberTasks(tasks []models.TaskSnapshot) {
	e.lastTasks = append([]models.TaskSnapshot(nil), tasks...)
	e.haveTasks = true
}
