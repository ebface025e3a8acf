package tasks

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/tickup/internal/cli"
	"github.com/julianstephens/tickup/internal/reminder"
)

// ReconcileCmd brings scheduled alerts in line with the current tasks and preferences.
type ReconcileCmd struct{}

func (c *ReconcileCmd) Run(ctx *cli.Context) error {
	report, err := ctx.Reconcile(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(cli.FormatReport(report))
	return nil
}

type TaskCompleteCmd struct {
	ID string `arg:"" help:"ID of the completed task."`
}

func (c *TaskCompleteCmd) Run(ctx *cli.Context) error {
	report, err := ctx.Engine.OnTaskCompleted(context.Background(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}
	printCancel(c.ID, report)
	return nil
}

type TaskDeleteCmd struct {
	ID string `arg:"" help:"ID of the deleted task."`
}

func (c *TaskDeleteCmd) Run(ctx *cli.Context) error {
	report, err := ctx.Engine.OnTaskDeleted(context.Background(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}
	printCancel(c.ID, report)
	return nil
}

func printCancel(id string, report reminder.Report) {
	switch {
	case len(report.Failures) > 0:
		fmt.Println(cli.FormatReport(report))
	case report.Canceled > 0:
		fmt.Printf("Canceled reminder for task %s\n", id)
	default:
		fmt.Printf("No reminder scheduled for task %s\n", id)
	}
}

type TaskListCmd struct {
	All bool `help:"Include completed tasks."`
}

func (c *TaskListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	src, err := ctx.TaskSource(bg)
	if err != nil {
		return err
	}
	tasks, err := src.Tasks(bg)
	if err != nil {
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}

	index, err := ctx.Engine.Index()
	if err != nil {
		return err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueAt, tasks[j].DueAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.Before(b)
	})

	var rows [][]string
	for _, t := range tasks {
		if t.IsCompleted && !c.All {
			continue
		}

		due := "-"
		if !t.DueAt.IsZero() {
			due = humanize.Time(t.DueAt)
		}
		status := "open"
		if t.IsCompleted {
			status = "done"
		}
		alert := "-"
		if entry, ok := index.Tasks[t.ID]; ok {
			alert = cli.FormatWhen(entry.FireAt)
		}

		rows = append(rows, []string{t.ID, t.Title, due, status, alert})
	}

	if len(rows) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	fmt.Println(cli.RenderTable([]string{"ID", "Title", "Due", "Status", "Reminder"}, rows))
	return nil
}
