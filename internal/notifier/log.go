package notifier

import (
	"context"

	"github.com/julianstephens/tickup/internal/logger"
)

// LogSink writes notifications to the log instead of delivering them.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, msg Message) error {
	logger.Info("Notification", "title", msg.Title, "body", msg.Body, "sound", msg.Sound)
	return nil
}

func (LogSink) Check(context.Context) error { return nil }
