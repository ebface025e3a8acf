package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSink is returned when no delivery channel is configured
var ErrNoSink = errors.New("no notification sink configured")

// Message is a notification ready for delivery.
type Message struct {
	Title   string
	Body    string
	Sound   bool
	Vibrate bool
	Data    map[string]string
}

// Text renders the message as a single line
func (m Message) Text() string {
	switch {
	case m.Title == "":
		return m.Body
	case m.Body == "":
		return m.Title
	}
	return m.Title + ": " + m.Body
}

// Sink delivers messages to the user.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	// Check reports whether the sink can currently deliver
	Check(ctx context.Context) error
}

// Multi fans a message out to every sink.
type Multi []Sink

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, s := range m {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Send succeeds when at least one sink delivered the message.
func (m Multi) Send(ctx context.Context, msg Message) error {
	if len(m) == 0 {
		return ErrNoSink
	}

	var errs []error
	delivered := 0
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Check passes when any sink passes.
func (m Multi) Check(ctx context.Context) error {
	if len(m) == 0 {
		return ErrNoSink
	}

	var errs []error
	for _, s := range m {
		err := s.Check(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return errors.Join(errs...)
}
