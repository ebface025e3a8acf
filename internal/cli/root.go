package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/tickup/internal/alerts"
	"github.com/julianstephens/tickup/internal/config"
	"github.com/julianstephens/tickup/internal/keyring"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/models"
	"github.com/julianstephens/tickup/internal/notifier"
	"github.com/julianstephens/tickup/internal/reminder"
	"github.com/julianstephens/tickup/internal/storage"
	"github.com/julianstephens/tickup/internal/tasksource"
)

// ErrNoTaskSource is returned when neither the REST API nor a tasks database is configured
var ErrNoTaskSource = errors.New("no task source configured (set api.url and api.user_id, or tasks_dsn)")

type Context struct {
	Config    *config.Config
	Store     storage.Provider
	Sink      notifier.Sink
	Scheduler *alerts.LocalScheduler
	Engine    *reminder.Engine
	// Tasks is resolved on first use unless set
	Tasks tasksource.Source

	closers []func()
}

// NewContext wires the scheduler, delivery sinks and reminder engine over store.
// Nothing here touches the network.
func NewContext(cfg *config.Config, store storage.Provider, dryRun bool) (*Context, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Context{
		Config: cfg,
		Store:  store,
		Sink:   buildSink(cfg, dryRun),
	}
	c.Scheduler = alerts.NewLocalScheduler(store, c.Sink,
		alerts.WithLocation(loc),
		alerts.WithGracePeriod(cfg.GracePeriod),
		alerts.WithCheckInterval(cfg.ReconcileInterval),
	)
	c.Engine = reminder.New(store, c.Scheduler,
		reminder.WithItemTimeout(cfg.ItemTimeout),
		reminder.WithConcurrency(cfg.Concurrency),
		reminder.WithTaskLister(tasksource.SourceFunc(c.fetchTasks)),
	)
	return c, nil
}

func buildSink(cfg *config.Config, dryRun bool) notifier.Sink {
	if dryRun {
		return notifier.LogSink{}
	}

	var sinks notifier.Multi
	if cfg.Tray {
		sinks = append(sinks, notifier.NewTraySink())
	}
	if cfg.HasTelegram() {
		tg, err := notifier.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("Telegram delivery disabled", "error", err)
		} else {
			sinks = append(sinks, tg)
		}
	}

	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	}
	return sinks
}

// TaskSource returns the configured task source wrapped with the local cache.
func (c *Context) TaskSource(ctx context.Context) (tasksource.Source, error) {
	if c.Tasks != nil {
		return c.Tasks, nil
	}

	loc, err := c.Config.Location()
	if err != nil {
		return nil, err
	}

	var src tasksource.Source
	switch {
	case c.Config.HasAPI():
		token := c.Config.API.Token
		if token == "" {
			if t, err := keyring.GetAPIToken(); err == nil {
				token = t
			} else if !errors.Is(err, keyring.ErrNotFound) {
				logger.Warn("Could not read API token from keyring", "error", err)
			}
		}
		src, err = tasksource.NewHTTPSource(c.Config.API.URL, c.Config.API.UserID, token, tasksource.WithLocation(loc))
		if err != nil {
			return nil, err
		}
	case c.Config.TasksDSN != "":
		pg, err := tasksource.NewPostgresSource(ctx, c.Config.TasksDSN, c.Config.API.UserID)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pg.Close)
		src = pg
	default:
		return nil, ErrNoTaskSource
	}

	c.Tasks = tasksource.NewCachedSource(src, c.Store)
	return c.Tasks, nil
}

func (c *Context) fetchTasks(ctx context.Context) ([]models.TaskSnapshot, error) {
	src, err := c.TaskSource(ctx)
	if err != nil {
		return nil, err
	}
	return src.Tasks(ctx)
}

// Reconcile fetches tasks and reconciles every alert. Without a task source only the
// daily and weekly alerts are reconciled.
func (c *Context) Reconcile(ctx context.Context) (reminder.Report, error) {
	tasks, err := c.fetchTasks(ctx)
	if errors.Is(err, ErrNoTaskSource) {
		logger.Debug("No task source, reconciling daily and weekly alerts only")
		return c.Engine.ReconcileLines(ctx)
	}
	if err != nil {
		return reminder.Report{}, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return c.Engine.Reconcile(ctx, tasks)
}

// Close releases resources opened while running a command
func (c *Context) Close() error {
	for _, fn := range c.closers {
		fn()
	}
	c.closers = nil
	return c.Store.Close()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// RenderTable renders rows under headers
func RenderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

func Muted(s string) string { return mutedStyle.Render(s) }

// FormatReport summarizes a report for the terminal.
func FormatReport(r reminder.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scheduled %d, canceled %d", r.Scheduled, r.Canceled)
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, ", %s", warnStyle.Render(fmt.Sprintf("%d failed", len(r.Failures))))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "\n  ⚠ %v", f)
		}
	}
	return b.String()
}

// FormatWhen renders a fire time in the local zone
func FormatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Mon Jan 2 15:04")
}
