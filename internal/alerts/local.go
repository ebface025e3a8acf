package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/tickup/internal/constants"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/notifier"
	"github.com/julianstephens/tickup/internal/storage"
)

// Job is a scheduled alert as persisted under alerts.job.<handle>.
type Job struct {
	Handle    string     `json:"handle"`
	Payload   Payload    `json:"payload"`
	Trigger   Trigger    `json:"trigger"`
	NextFire  time.Time  `json:"nextFire"`
	CreatedAt time.Time  `json:"createdAt"`
	LastFired *time.Time `json:"lastFired,omitempty"`
}

// LocalScheduler stores jobs in the preference store so any process sharing it
// can schedule or cancel, while the daemon delivers them.
type LocalScheduler struct {
	store         storage.Store
	sink          notifier.Sink
	loc           *time.Location
	grace         time.Duration
	checkInterval time.Duration
	retryDelay    time.Duration
	now           func() time.Time
	newHandle     func() string
	permission    func(ctx context.Context) error

	mu       sync.Mutex
	jobs     map[string]Job
	notifyCh chan struct{}
	// retryAt holds jobs whose last delivery failed; they are not retried before then
	retryAt map[string]time.Time
}

type Option func(*LocalScheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *LocalScheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithGracePeriod sets how late a missed alert may still be delivered
func WithGracePeriod(d time.Duration) Option {
	return func(s *LocalScheduler) { s.grace = d }
}

func WithCheckInterval(d time.Duration) Option {
	return func(s *LocalScheduler) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithRetryDelay sets how long a job waits after a failed delivery
func WithRetryDelay(d time.Duration) Option {
	return func(s *LocalScheduler) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LocalScheduler) { s.now = now }
}

// WithPermission sets the hook consulted before every Schedule call
func WithPermission(fn func(ctx context.Context) error) Option {
	return func(s *LocalScheduler) { s.permission = fn }
}

func NewLocalScheduler(store storage.Store, sink notifier.Sink, opts ...Option) *LocalScheduler {
	s := &LocalScheduler{
		store:         store,
		sink:          sink,
		loc:           time.Local,
		grace:         constants.DefaultGracePeriod,
		checkInterval: constants.DefaultReconcileInterval,
		retryDelay:    constants.DefaultRetryDelay,
		now:           time.Now,
		newHandle:     uuid.NewString,
		jobs:          map[string]Job{},
		retryAt:       map[string]time.Time{},
		notifyCh:      make(chan struct{}, 1),
	}
	s.permission = s.sinkConfigured
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalScheduler) sinkConfigured(context.Context) error {
	if s.sink == nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPermissionDenied, notifier.ErrNoSink)
	}
	return nil
}

func jobKey(handle string) string {
	return constants.KeyJobPrefix + handle
}

func (s *LocalScheduler) Schedule(ctx context.Context, payload Payload, trigger Trigger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.permission(ctx); err != nil {
		if !errors.Is(err, apperrors.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", apperrors.ErrPermissionDenied, err)
		}
		return "", err
	}
	if err := trigger.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	if trigger.Kind == KindOneShot && !trigger.At.After(now) {
		return "", ErrPastTrigger
	}

	next, err := NextFire(trigger, now, s.loc)
	if err != nil {
		return "", err
	}
	if next.IsZero() {
		return "", ErrPastTrigger
	}

	job := Job{
		Handle:    s.newHandle(),
		Payload:   payload,
		Trigger:   trigger,
		NextFire:  next,
		CreatedAt: now,
	}
	if err := s.save(job); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.jobs[job.Handle] = job
	s.mu.Unlock()
	s.Notify()

	logger.Debug("Scheduled alert", "handle", job.Handle, "trigger", trigger.String(), "next", next)
	return job.Handle, nil
}

func (s *LocalScheduler) Cancel(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	_, cached := s.jobs[handle]
	delete(s.jobs, handle)
	delete(s.retryAt, handle)
	s.mu.Unlock()

	_, err := s.store.Get(jobKey(handle))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if !cached {
			return ErrUnknownHandle
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up alert %s: %w", handle, err)
	}

	if err := s.store.Remove(jobKey(handle)); err != nil {
		return fmt.Errorf("failed to remove alert %s: %w", handle, err)
	}
	s.Notify()

	logger.Debug("Canceled alert", "handle", handle)
	return nil
}

func (s *LocalScheduler) CancelAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys, err := s.store.Keys(constants.KeyJobPrefix)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}

	batch := storage.NewBatch()
	for _, k := range keys {
		batch.Delete(k)
	}
	if err := s.store.Commit(batch); err != nil {
		return fmt.Errorf("failed to remove alerts: %w", err)
	}

	s.mu.Lock()
	s.jobs = map[string]Job{}
	s.retryAt = map[string]time.Time{}
	s.mu.Unlock()
	s.Notify()

	logger.Debug("Canceled all alerts", "count", len(keys))
	return nil
}

// SendNow delivers a payload immediately, bypassing the job store.
func (s *LocalScheduler) SendNow(ctx context.Context, payload Payload) error {
	if s.sink == nil {
		return notifier.ErrNoSink
	}
	return s.sink.Send(ctx, toMessage(payload))
}

// Sync reloads every job from the store, replacing the in-memory set.
func (s *LocalScheduler) Sync() error {
	keys, err := s.store.Keys(constants.KeyJobPrefix)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}

	jobs := make(map[string]Job, len(keys))
	for _, k := range keys {
		data, err := s.store.Get(k)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", k, err)
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			logger.Warn("Dropping unreadable alert job", "key", k, "error", err)
			if err := s.store.Remove(k); err != nil {
				return fmt.Errorf("failed to remove %s: %w", k, err)
			}
			continue
		}
		if job.Handle == "" {
			job.Handle = strings.TrimPrefix(k, constants.KeyJobPrefix)
		}
		jobs[job.Handle] = job
	}

	s.mu.Lock()
	s.jobs = jobs
	for h := range s.retryAt {
		if _, ok := jobs[h]; !ok {
			delete(s.retryAt, h)
		}
	}
	s.mu.Unlock()
	return nil
}

// Jobs returns the known jobs ordered by next fire time.
func (s *LocalScheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextFire.Equal(out[j].NextFire) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].NextFire.Before(out[j].NextFire)
	})
	return out
}

// Notify wakes the delivery loop. Non-blocking if a wake-up is already pending.
func (s *LocalScheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Start runs the delivery loop until ctx is canceled.
func (s *LocalScheduler) Start(ctx context.Context) error {
	logger.Info("Alert scheduler started", "interval", s.checkInterval, "grace", s.grace)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Alert scheduler stopped")
			return nil
		case <-timer.C:
		case <-s.notifyCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := s.RunDue(ctx); err != nil {
			logger.Error("Alert delivery pass failed", "error", err)
		}
		timer.Reset(s.untilNext())
	}
}

func (s *LocalScheduler) untilNext() time.Duration {
	wait := s.checkInterval
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		at := j.NextFire
		if r, ok := s.retryAt[j.Handle]; ok && r.After(at) {
			at = r
		}
		if d := at.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// RunDue delivers every job whose fire time has passed and returns how many were delivered.
// Jobs missed by more than the grace period are skipped.
func (s *LocalScheduler) RunDue(ctx context.Context) (int, error) {
	if err := s.Sync(); err != nil {
		return 0, err
	}

	now := s.now()
	delivered := 0
	var errs []error

	for _, job := range s.Jobs() {
		if job.NextFire.After(now) {
			break
		}
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if s.backingOff(job.Handle, now) {
			continue
		}

		late := now.Sub(job.NextFire)
		if late <= s.grace {
			if err := s.deliver(ctx, job); err != nil {
				// a failed delivery stays due and is retried until it ages out
				retry := now.Add(s.retryDelay)
				s.mu.Lock()
				s.retryAt[job.Handle] = retry
				s.mu.Unlock()
				logger.Warn("Failed to deliver alert", "handle", job.Handle, "retry", retry, "error", err)
				errs = append(errs, err)
				continue
			}
			delivered++
			fired := now
			job.LastFired = &fired
		} else {
			logger.Warn("Skipping missed alert", "handle", job.Handle, "due", job.NextFire, "late", late.Round(time.Second))
		}

		if err := s.advance(job, now); err != nil {
			errs = append(errs, err)
		}
	}

	return delivered, errors.Join(errs...)
}

func (s *LocalScheduler) backingOff(handle string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	retry, ok := s.retryAt[handle]
	return ok && now.Before(retry)
}

func (s *LocalScheduler) deliver(ctx context.Context, job Job) error {
	if s.sink == nil {
		return notifier.ErrNoSink
	}
	logger.Info("Delivering alert", "handle", job.Handle, "title", job.Payload.Title)
	return s.sink.Send(ctx, toMessage(job.Payload))
}

// advance moves a recurring job to its next firing and removes a spent one-shot.
func (s *LocalScheduler) advance(job Job, now time.Time) error {
	s.mu.Lock()
	delete(s.retryAt, job.Handle)
	s.mu.Unlock()

	if !job.Trigger.Recurring() {
		s.mu.Lock()
		delete(s.jobs, job.Handle)
		s.mu.Unlock()
		return s.store.Remove(jobKey(job.Handle))
	}

	next, err := NextFire(job.Trigger, now, s.loc)
	if err != nil {
		return err
	}
	job.NextFire = next

	// a cancel may have raced this pass
	if _, err := s.store.Get(jobKey(job.Handle)); errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err := s.save(job); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[job.Handle] = job
	s.mu.Unlock()
	return nil
}

func (s *LocalScheduler) save(job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	if err := s.store.Set(jobKey(job.Handle), data); err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}
	return nil
}

func toMessage(p Payload) notifier.Message {
	return notifier.Message{
		Title:   p.Title,
		Body:    p.Body,
		Sound:   p.Sound,
		Vibrate: p.Vibrate,
		Data:    p.Data,
	}
}
