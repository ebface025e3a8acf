package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/tickup/internal/alerts"
	"github.com/julianstephens/tickup/internal/constants"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/models"
	"github.com/julianstephens/tickup/internal/storage"
)

var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

type fakeScheduler struct {
	mu        sync.Mutex
	n         int
	live      map[string]alerts.Trigger
	schedules []alerts.Payload
	cancels   []string
	cancelAll int

	scheduleErr  func(p alerts.Payload) error
	cancelErr    func(handle string) error
	cancelAllErr error
	// block, when set, holds Schedule until closed regardless of ctx
	block chan struct{}
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: map[string]alerts.Trigger{}}
}

func (f *fakeScheduler) Schedule(_ context.Context, p alerts.Payload, t alerts.Trigger) (string, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = append(f.schedules, p)
	if f.scheduleErr != nil {
		if err := f.scheduleErr(p); err != nil {
			return "", err
		}
	}
	f.n++
	handle := fmt.Sprintf("h%d", f.n)
	f.live[handle] = t
	return handle, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, handle)
	if f.cancelErr != nil {
		if err := f.cancelErr(handle); err != nil {
			return err
		}
	}
	if _, ok := f.live[handle]; !ok {
		return alerts.ErrUnknownHandle
	}
	delete(f.live, handle)
	return nil
}

func (f *fakeScheduler) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAll++
	if f.cancelAllErr != nil {
		return f.cancelAllErr
	}
	f.live = map[string]alerts.Trigger{}
	return nil
}

func (f *fakeScheduler) counts() (schedules, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.schedules), len(f.cancels)
}

func (f *fakeScheduler) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = nil
	f.cancels = nil
	f.cancelAll = 0
}

func (f *fakeScheduler) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

type failingStore struct {
	*storage.MemoryStore
	commitErr error
	setErr    error
}

func (s *failingStore) Commit(b *storage.Batch) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.MemoryStore.Commit(b)
}

func (s *failingStore) Set(key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(key, value)
}

type staticLister []models.TaskSnapshot

func (l staticLister) Tasks(context.Context) ([]models.TaskSnapshot, error) {
	return l, nil
}

// taskOnlyPrefs disables the daily and weekly lines
func taskOnlyPrefs() models.NotificationPreferences {
	p := DefaultPreferences()
	p.DailyReminderEnabled = false
	p.WeeklySummaryEnabled = false
	return p
}

func task(id string, dueIn time.Duration) models.TaskSnapshot {
	return models.TaskSnapshot{ID: id, Title: "Task " + id, DueAt: testNow.Add(dueIn)}
}

func newTestEngine(t *testing.T, store storage.Store, opts ...Option) (*Engine, *fakeScheduler) {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	sched := newFakeScheduler()
	base := []Option{WithClock(func() time.Time { return testNow }), WithItemTimeout(time.Second)}
	e := New(store, sched, append(base, opts...)...)
	if err := e.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return e, sched
}

func mustReconcile(t *testing.T, e *Engine, tasks []models.TaskSnapshot, prefs models.NotificationPreferences) Report {
	t.Helper()
	report, err := e.ReconcileAll(context.Background(), tasks, prefs)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	return report
}

func TestLoad_WritesDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	e, _ := newTestEngine(t, store)

	if _, err := store.Get(constants.KeyNotificationPreferences); err != nil {
		t.Errorf("defaults not persisted: %v", err)
	}
	prefs, err := e.Preferences()
	if err != nil {
		t.Fatal(err)
	}
	if prefs != DefaultPreferences() {
		t.Errorf("Preferences() = %+v", prefs)
	}
}

func TestReconcileAll_SchedulesUpcomingTask(t *testing.T) {
	e, sched := newTestEngine(t, nil)

	report := mustReconcile(t, e, []models.TaskSnapshot{task("a", 40*time.Minute)}, taskOnlyPrefs())
	if report.Scheduled != 1 || report.Canceled != 0 || len(report.Failures) != 0 {
		t.Fatalf("report = %+v", report)
	}

	trigger := sched.live["h1"]
	if trigger.Kind != alerts.KindOneShot || !trigger.At.Equal(testNow.Add(10*time.Minute)) {
		t.Errorf("trigger = %+v, want one-shot at +10m", trigger)
	}
	if got := sched.schedules[0].Body; got != `"Task a" is due in 30 minutes!` {
		t.Errorf("body = %q", got)
	}

	idx, _ := e.Index()
	if idx.Tasks["a"].Handle != "h1" {
		t.Errorf("index = %+v", idx.Tasks)
	}
}

func TestReconcileAll_Idempotent(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	tasks := []models.TaskSnapshot{task("a", time.Hour), task("b", 2*time.Hour)}
	prefs := DefaultPreferences()

	mustReconcile(t, e, tasks, prefs)
	if n, _ := sched.counts(); n != 4 {
		t.Fatalf("first pass scheduled %d, want 4", n)
	}

	sched.reset()
	report := mustReconcile(t, e, tasks, prefs)
	if report.Changed() {
		t.Errorf("second pass changed alerts: %+v", report)
	}
	if s, c := sched.counts(); s != 0 || c != 0 {
		t.Errorf("second pass made %d schedules and %d cancels", s, c)
	}
}

func TestReconcileAll_SkipsTasksWithoutFutureReminder(t *testing.T) {
	e, sched := newTestEngine(t, nil)

	done := task("done", time.Hour)
	done.IsCompleted = true
	tasks := []models.TaskSnapshot{
		task("soon", 20*time.Minute), // reminder would be 10 minutes ago
		task("exact", 30*time.Minute),
		done,
		{ID: "undated", Title: "No due date"},
	}

	report := mustReconcile(t, e, tasks, taskOnlyPrefs())
	if report.Scheduled != 0 {
		t.Errorf("scheduled %d alerts, want 0", report.Scheduled)
	}
	if sched.liveCount() != 0 {
		t.Error("scheduler holds alerts")
	}
}

func TestReconcileAll_DueDateMovesInsideLead(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	prefs := taskOnlyPrefs()

	mustReconcile(t, e, []models.TaskSnapshot{task("a", 40*time.Minute)}, prefs)
	sched.reset()

	report := mustReconcile(t, e, []models.TaskSnapshot{task("a", 5*time.Minute)}, prefs)
	if report.Canceled != 1 || report.Scheduled != 0 {
		t.Errorf("report = %+v, want one cancel and no schedule", report)
	}
	idx, _ := e.Index()
	if _, ok := idx.Tasks["a"]; ok {
		t.Error("task still indexed")
	}
}

func TestReconcileAll_DailyTimeChange(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	prefs := DefaultPreferences()

	mustReconcile(t, e, nil, prefs)
	idx, _ := e.Index()
	oldDaily := idx.Daily.Handle
	oldWeekly := idx.Weekly.Handle
	sched.reset()

	prefs.DailyReminderTime = models.TimeOfDay{Hour: 7, Minute: 30}
	report := mustReconcile(t, e, nil, prefs)
	if report.Canceled != 1 || report.Scheduled != 1 {
		t.Fatalf("report = %+v, want one cancel and one schedule", report)
	}
	if sched.cancels[0] != oldDaily {
		t.Errorf("canceled %s, want %s", sched.cancels[0], oldDaily)
	}

	idx, _ = e.Index()
	if idx.Daily.Hour != 7 || idx.Daily.Minute != 30 {
		t.Errorf("daily = %+v", idx.Daily)
	}
	if idx.Weekly.Handle != oldWeekly {
		t.Error("weekly alert should be untouched")
	}
	if tr := sched.live[idx.Daily.Handle]; tr.Kind != alerts.KindDaily || tr.Hour != 7 || tr.Minute != 30 {
		t.Errorf("daily trigger = %+v", tr)
	}
}

func TestReconcileAll_WeeklyOnSunday(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	mustReconcile(t, e, nil, DefaultPreferences())

	idx, _ := e.Index()
	tr := sched.live[idx.Weekly.Handle]
	if tr.Kind != alerts.KindWeekly || tr.Weekday != time.Sunday || tr.Hour != 18 || tr.Minute != 0 {
		t.Errorf("weekly trigger = %+v", tr)
	}
}

func TestReconcileAll_MasterSwitch(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	tasks := []models.TaskSnapshot{task("a", time.Hour), task("b", 2*time.Hour)}

	mustReconcile(t, e, tasks, DefaultPreferences())
	sched.reset()

	off := DefaultPreferences()
	off.Enabled = false
	report := mustReconcile(t, e, tasks, off)
	if report.Canceled != 4 || report.Scheduled != 0 {
		t.Errorf("report = %+v, want 4 cancels", report)
	}
	if sched.liveCount() != 0 {
		t.Error("alerts left after disabling")
	}
	idx, _ := e.Index()
	if !idx.IsEmpty() {
		t.Errorf("index not cleared: %+v", idx)
	}

	sched.reset()
	mustReconcile(t, e, tasks, off)
	if s, c := sched.counts(); s != 0 || c != 0 {
		t.Error("disabled reconcile with empty index should not call the scheduler")
	}
}

func TestReconcileAll_MasterSwitchFallsBackToCancelAll(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	mustReconcile(t, e, []models.TaskSnapshot{task("a", time.Hour)}, DefaultPreferences())

	sched.cancelErr = func(handle string) error { return errors.New("busy") }
	off := DefaultPreferences()
	off.Enabled = false

	report := mustReconcile(t, e, nil, off)
	if sched.cancelAll != 1 {
		t.Errorf("CancelAll called %d times, want 1", sched.cancelAll)
	}
	if len(report.Failures) != 0 {
		t.Errorf("failures = %v", report.Failures)
	}
	idx, _ := e.Index()
	if !idx.IsEmpty() {
		t.Error("index should be empty after CancelAll")
	}

	// CancelAll failing keeps the entries for the next pass
	e2, sched2 := newTestEngine(t, nil)
	mustReconcile(t, e2, []models.TaskSnapshot{task("a", time.Hour)}, taskOnlyPrefs())
	sched2.cancelErr = func(string) error { return errors.New("busy") }
	sched2.cancelAllErr = errors.New("still busy")

	report = mustReconcile(t, e2, nil, off)
	if len(report.Failures) != 2 {
		t.Errorf("failures = %v, want cancel and cancel_all", report.Failures)
	}
	idx, _ = e2.Index()
	if idx.Tasks["a"].Handle == "" {
		t.Error("entry dropped although its cancel failed")
	}
}

func TestReconcileAll_PerItemFailureContinues(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	sched.scheduleErr = func(p alerts.Payload) error {
		if p.Data["taskId"] == "b" {
			return errors.New("rejected")
		}
		return nil
	}
	tasks := []models.TaskSnapshot{task("a", time.Hour), task("b", time.Hour), task("c", time.Hour)}

	report := mustReconcile(t, e, tasks, taskOnlyPrefs())
	if report.Scheduled != 2 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v", report)
	}
	var serr *apperrors.SchedulerError
	if !errors.As(report.Failures[0], &serr) || serr.TaskID != "b" || serr.Op != "schedule" {
		t.Errorf("failure = %v", report.Failures[0])
	}

	sched.scheduleErr = nil
	report = mustReconcile(t, e, tasks, taskOnlyPrefs())
	if report.Scheduled != 1 {
		t.Errorf("retry scheduled %d, want 1", report.Scheduled)
	}
}

func TestReconcileAll_CancelFailureKeepsEntry(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	prefs := taskOnlyPrefs()
	mustReconcile(t, e, []models.TaskSnapshot{task("a", time.Hour)}, prefs)
	sched.reset()

	sched.cancelErr = func(string) error { return errors.New("busy") }
	report := mustReconcile(t, e, []models.TaskSnapshot{task("a", 2*time.Hour)}, prefs)
	if report.Scheduled != 0 || len(report.Failures) != 1 {
		t.Errorf("report = %+v, want replacement skipped", report)
	}
	idx, _ := e.Index()
	if idx.Tasks["a"].Handle != "h1" {
		t.Errorf("entry = %+v, want original handle kept", idx.Tasks["a"])
	}
}

func TestReconcileAll_HungCallTimesOut(t *testing.T) {
	e, sched := newTestEngine(t, nil, WithItemTimeout(20*time.Millisecond))
	sched.block = make(chan struct{})

	start := time.Now()
	report, err := e.ReconcileAll(context.Background(), []models.TaskSnapshot{task("a", time.Hour)}, taskOnlyPrefs())
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ReconcileAll took %v", elapsed)
	}
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0], context.DeadlineExceeded) {
		t.Errorf("failures = %v, want deadline exceeded", report.Failures)
	}

	close(sched.block)
	e.late.Wait()
	if sched.liveCount() != 0 {
		t.Error("handle returned after the timeout was not canceled")
	}
	idx, _ := e.Index()
	if len(idx.Tasks) != 0 {
		t.Error("timed out schedule should not be indexed")
	}
}

func TestReconcileAll_PersistenceFailure(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	e, _ := newTestEngine(t, store)
	store.commitErr = errors.New("disk full")

	_, err := e.ReconcileAll(context.Background(), []models.TaskSnapshot{task("a", time.Hour)}, taskOnlyPrefs())
	var perr *apperrors.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
}

func TestReconcileAll_RejectsInvalidPreferences(t *testing.T) {
	tests := []struct {
		name string
		lead int
	}{
		{"negative lead", -5},
		{"lead that overflows a duration", 200_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sched := newTestEngine(t, nil)
			bad := DefaultPreferences()
			bad.ReminderLeadMinutes = tt.lead

			tasks := []models.TaskSnapshot{task("a", 40*time.Minute)}
			if _, err := e.ReconcileAll(context.Background(), tasks, bad); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("error = %v, want validation error", err)
			}
			if s, c := sched.counts(); s != 0 || c != 0 {
				t.Error("invalid preferences reached the scheduler")
			}
		})
	}
}

func TestReconcileAll_ReopenedTask(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	prefs := taskOnlyPrefs()
	a := task("a", time.Hour)

	mustReconcile(t, e, []models.TaskSnapshot{a}, prefs)
	a.IsCompleted = true
	mustReconcile(t, e, []models.TaskSnapshot{a}, prefs)
	a.IsCompleted = false
	report := mustReconcile(t, e, []models.TaskSnapshot{a}, prefs)

	if report.Scheduled != 1 {
		t.Errorf("reopened task scheduled %d alerts, want 1", report.Scheduled)
	}
}

func TestReconcileAll_LeadTimeChangeReschedules(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	prefs := taskOnlyPrefs()
	tasks := []models.TaskSnapshot{task("a", 2*time.Hour)}
	mustReconcile(t, e, tasks, prefs)
	sched.reset()

	prefs.ReminderLeadMinutes = 60
	report := mustReconcile(t, e, tasks, prefs)
	if report.Canceled != 1 || report.Scheduled != 1 {
		t.Errorf("report = %+v", report)
	}
	idx, _ := e.Index()
	if !idx.Tasks["a"].FireAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("FireAt = %v", idx.Tasks["a"].FireAt)
	}
}

func TestEngine_ColdStartKeepsIndex(t *testing.T) {
	store := storage.NewMemoryStore()
	e, sched := newTestEngine(t, store)
	tasks := []models.TaskSnapshot{task("a", time.Hour)}
	mustReconcile(t, e, tasks, DefaultPreferences())

	restarted := New(store, sched, WithClock(func() time.Time { return testNow }))
	sched.reset()
	report, err := restarted.Reconcile(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Changed() {
		t.Errorf("restart rescheduled alerts: %+v", report)
	}
}

func TestEngine_LegacyIndex(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Set(constants.KeyTaskNotificationIDs, []byte(`{"a":"legacy-task"}`))
	_ = store.Set(constants.KeyDailyReminderID, []byte(`legacy-daily`))

	e, _ := newTestEngine(t, store)
	idx, _ := e.Index()
	if idx.Tasks["a"].Handle != "legacy-task" || !idx.Daily.Legacy {
		t.Fatalf("legacy index = %+v", idx)
	}

	prefs := DefaultPreferences()
	prefs.WeeklySummaryEnabled = false
	report := mustReconcile(t, e, []models.TaskSnapshot{task("a", time.Hour)}, prefs)
	if report.Canceled != 2 || report.Scheduled != 2 || len(report.Failures) != 0 {
		t.Errorf("report = %+v, want legacy handles replaced", report)
	}

	idx, _ = e.Index()
	if idx.Tasks["a"].Handle == "legacy-task" || idx.Daily.Legacy {
		t.Errorf("legacy entries survived: %+v", idx)
	}
}

func TestOnTaskCompleted(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	mustReconcile(t, e, []models.TaskSnapshot{task("a", time.Hour), task("b", time.Hour)}, DefaultPreferences())
	idx, _ := e.Index()
	handle := idx.Tasks["a"].Handle
	sched.reset()

	report, err := e.OnTaskCompleted(context.Background(), "a")
	if err != nil {
		t.Fatalf("OnTaskCompleted failed: %v", err)
	}
	if report.Canceled != 1 {
		t.Errorf("report = %+v", report)
	}
	if s, c := sched.counts(); s != 0 || c != 1 || sched.cancels[0] != handle {
		t.Errorf("scheduler saw %d schedules and cancels %v", s, sched.cancels)
	}

	idx, _ = e.Index()
	if _, ok := idx.Tasks["a"]; ok || idx.Tasks["b"].Handle == "" || idx.Daily == nil {
		t.Errorf("index after completion = %+v", idx)
	}

	sched.reset()
	if _, err := e.OnTaskCompleted(context.Background(), "unknown"); err != nil {
		t.Fatal(err)
	}
	if s, c := sched.counts(); s != 0 || c != 0 {
		t.Error("completing an unindexed task should not call the scheduler")
	}
}

func TestOnTaskDeleted_UnknownHandle(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	mustReconcile(t, e, []models.TaskSnapshot{task("a", time.Hour)}, taskOnlyPrefs())

	// the alert already fired and is gone from the scheduler
	sched.live = map[string]alerts.Trigger{}

	report, err := e.OnTaskDeleted(context.Background(), "a")
	if err != nil || report.Canceled != 1 || len(report.Failures) != 0 {
		t.Errorf("OnTaskDeleted = %+v, %v", report, err)
	}
	idx, _ := e.Index()
	if len(idx.Tasks) != 0 {
		t.Error("entry kept after delete")
	}
}

func TestOnPreferencesSaved_Validation(t *testing.T) {
	store := storage.NewMemoryStore()
	e, sched := newTestEngine(t, store)
	before, _ := store.Get(constants.KeyNotificationPreferences)

	bad := DefaultPreferences()
	bad.DailyReminderTime = models.TimeOfDay{Hour: 25}
	if _, err := e.OnPreferencesSaved(context.Background(), bad); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}

	after, _ := store.Get(constants.KeyNotificationPreferences)
	if string(before) != string(after) {
		t.Error("rejected preferences were persisted")
	}
	if s, c := sched.counts(); s != 0 || c != 0 {
		t.Error("rejected preferences reached the scheduler")
	}
}

func TestOnPreferencesSaved_UsesLastSnapshot(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	mustReconcile(t, e, []models.TaskSnapshot{task("a", 2*time.Hour)}, taskOnlyPrefs())
	sched.reset()

	prefs := taskOnlyPrefs()
	prefs.ReminderLeadMinutes = 15
	report, err := e.OnPreferencesSaved(context.Background(), prefs)
	if err != nil {
		t.Fatalf("OnPreferencesSaved failed: %v", err)
	}
	if report.Canceled != 1 || report.Scheduled != 1 {
		t.Errorf("report = %+v", report)
	}
	got, _ := e.Preferences()
	if got.ReminderLeadMinutes != 15 {
		t.Error("preferences not applied")
	}
}

func TestOnPreferencesSaved_WithoutSnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	e, sched := newTestEngine(t, store)
	mustReconcile(t, e, []models.TaskSnapshot{task("a", 2*time.Hour)}, DefaultPreferences())

	restarted := New(store, sched, WithClock(func() time.Time { return testNow }))
	sched.reset()

	prefs := DefaultPreferences()
	prefs.ReminderLeadMinutes = 15
	prefs.DailyReminderEnabled = false
	report, err := restarted.OnPreferencesSaved(context.Background(), prefs)
	if err != nil {
		t.Fatalf("OnPreferencesSaved failed: %v", err)
	}
	if report.Canceled != 1 || report.Scheduled != 0 {
		t.Errorf("report = %+v, want only the daily line canceled", report)
	}
	idx, _ := restarted.Index()
	if idx.Tasks["a"].Handle == "" {
		t.Error("task entry should be untouched without a snapshot")
	}
}

func TestOnPreferencesSaved_FetchesFromLister(t *testing.T) {
	lister := staticLister{task("a", 2*time.Hour)}
	e, _ := newTestEngine(t, nil, WithTaskLister(lister))

	report, err := e.OnPreferencesSaved(context.Background(), taskOnlyPrefs())
	if err != nil {
		t.Fatal(err)
	}
	if report.Scheduled != 1 {
		t.Errorf("report = %+v, want the listed task scheduled", report)
	}
}

func TestOnPreferencesSaved_PersistenceFailure(t *testing.T) {
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	e, _ := newTestEngine(t, store)
	store.setErr = errors.New("read-only")

	prefs := DefaultPreferences()
	prefs.SoundEnabled = false
	_, err := e.OnPreferencesSaved(context.Background(), prefs)
	var perr *apperrors.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
	got, _ := e.Preferences()
	if !got.SoundEnabled {
		t.Error("preferences changed although the write failed")
	}
}

func TestSendTest(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	var got alerts.Payload
	sender := senderFunc(func(_ context.Context, p alerts.Payload) error {
		got = p
		return nil
	})
	if err := e.SendTest(context.Background(), sender); err != nil {
		t.Fatal(err)
	}
	if got.Title != constants.TestAlertTitle || got.Data["type"] != TypeTest {
		t.Errorf("payload = %+v", got)
	}
}

type senderFunc func(ctx context.Context, p alerts.Payload) error

func (f senderFunc) SendNow(ctx context.Context, p alerts.Payload) error { return f(ctx, p) }

func TestReconcileLines(t *testing.T) {
	e, sched := newTestEngine(t, nil)
	mustReconcile(t, e, []models.TaskSnapshot{task("a", time.Hour)}, taskOnlyPrefs())
	sched.reset()

	prefs := DefaultPreferences()
	if _, err := e.OnPreferencesSaved(context.Background(), prefs); err != nil {
		t.Fatal(err)
	}
	sched.reset()

	report, err := e.ReconcileLines(context.Background())
	if err != nil || report.Changed() {
		t.Errorf("ReconcileLines = %+v, %v, want no changes", report, err)
	}
	idx, _ := e.Index()
	if idx.Tasks["a"].Handle == "" || idx.Daily == nil || idx.Weekly == nil {
		t.Errorf("index = %+v", idx)
	}
}
