// Package tasksource supplies task snapshots from the TickUp backend.
package tasksource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/tickup/internal/constants"
	"github.com/julianstephens/tickup/internal/models"
)

// Source returns the authoritative list of the user's tasks.
type Source interface {
	Tasks(ctx context.Context) ([]models.TaskSnapshot, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) ([]models.TaskSnapshot, error)

func (f SourceFunc) Tasks(ctx context.Context) ([]models.TaskSnapshot, error) {
	return f(ctx)
}

// isCompleted maps the backend's two completion signals onto one flag.
func isCompleted(status string, completed bool) bool {
	return completed || strings.EqualFold(strings.TrimSpace(status), constants.TaskStatusDone)
}

var dueLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDue accepts the timestamp forms the backend emits. Values without an
// offset are read in loc. An empty value means no due date.
func parseDue(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized due date %q", s)
}
