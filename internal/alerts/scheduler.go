// Package alerts defines the alert scheduling contract the reminder engine drives
// and a local implementation that persists jobs and delivers them through a notifier sink.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/tickup/internal/errors"
)

var (
	// ErrPastTrigger is returned when a one-shot trigger is at or before now
	ErrPastTrigger = errors.New("trigger time is not in the future")
	// ErrUnknownHandle is returned when canceling a handle the scheduler does not hold
	ErrUnknownHandle = errors.New("unknown alert handle")
)

type TriggerKind string

const (
	KindOneShot TriggerKind = "one_shot"
	KindDaily   TriggerKind = "daily"
	KindWeekly  TriggerKind = "weekly"
)

// Trigger says when an alert fires. At is used by one-shots; Hour and Minute by
// recurring triggers, plus Weekday for weekly ones.
type Trigger struct {
	Kind    TriggerKind  `json:"kind"`
	At      time.Time    `json:"at,omitempty"`
	Hour    int          `json:"hour,omitempty"`
	Minute  int          `json:"minute,omitempty"`
	Weekday time.Weekday `json:"weekday,omitempty"`
}

func OneShot(at time.Time) Trigger {
	return Trigger{Kind: KindOneShot, At: at}
}

func Daily(hour, minute int) Trigger {
	return Trigger{Kind: KindDaily, Hour: hour, Minute: minute}
}

func Weekly(weekday time.Weekday, hour, minute int) Trigger {
	return Trigger{Kind: KindWeekly, Weekday: weekday, Hour: hour, Minute: minute}
}

func (t Trigger) Recurring() bool {
	return t.Kind == KindDaily || t.Kind == KindWeekly
}

func (t Trigger) Validate() error {
	switch t.Kind {
	case KindOneShot:
		if t.At.IsZero() {
			return apperrors.NewValidationError("trigger", "", "one-shot trigger needs a time")
		}
		return nil
	case KindDaily, KindWeekly:
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return apperrors.NewValidationError("trigger", fmt.Sprintf("%02d:%02d", t.Hour, t.Minute), "time of day out of range")
		}
		if t.Kind == KindWeekly && (t.Weekday < time.Sunday || t.Weekday > time.Saturday) {
			return apperrors.NewValidationError("trigger", fmt.Sprint(int(t.Weekday)), "weekday out of range")
		}
		return nil
	}
	return apperrors.NewValidationError("trigger", string(t.Kind), "unknown trigger kind")
}

func (t Trigger) String() string {
	switch t.Kind {
	case KindOneShot:
		return "once at " + t.At.Format(time.RFC3339)
	case KindDaily:
		return fmt.Sprintf("daily at %02d:%02d", t.Hour, t.Minute)
	case KindWeekly:
		return fmt.Sprintf("every %s at %02d:%02d", t.Weekday, t.Hour, t.Minute)
	}
	return string(t.Kind)
}

// Payload is the content of an alert. Sound and Vibrate are delivery hints.
type Payload struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Sound   bool              `json:"sound"`
	Vibrate bool              `json:"vibrate"`
	Data    map[string]string `json:"data,omitempty"`
}

// Scheduler arranges for alerts to fire. Cancel of an unknown handle returns
// ErrUnknownHandle, which callers treat as success.
type Scheduler interface {
	Schedule(ctx context.Context, payload Payload, trigger Trigger) (string, error)
	Cancel(ctx context.Context, handle string) error
	CancelAll(ctx context.Context) error
}
