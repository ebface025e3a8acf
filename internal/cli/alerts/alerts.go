package alerts

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/tickup/internal/alerts"
	"github.com/julianstephens/tickup/internal/cli"
	"github.com/julianstephens/tickup/internal/constants"
	"github.com/julianstephens/tickup/internal/models"
)

type AlertListCmd struct{}

func (c *AlertListCmd) Run(ctx *cli.Context) error {
	index, err := ctx.Engine.Index()
	if err != nil {
		return fmt.Errorf("failed to get alerts: %w", err)
	}
	if err := ctx.Scheduler.Sync(); err != nil {
		return err
	}

	rows := Rows(index, ctx.Scheduler.Jobs())
	if len(rows) == 0 {
		fmt.Println("No alerts scheduled.")
		return nil
	}

	fmt.Println(cli.RenderTable([]string{"Kind", "Task", "Title", "Next", "Handle"}, rows))
	return nil
}

// Rows lists every indexed alert with its next fire time from jobs.
func Rows(index models.ScheduledAlertIndex, jobs []alerts.Job) [][]string {
	byHandle := make(map[string]alerts.Job, len(jobs))
	for _, j := range jobs {
		byHandle[j.Handle] = j
	}

	row := func(kind, taskID, handle string) []string {
		title, next := cli.Muted("(missing)"), "-"
		if job, ok := byHandle[handle]; ok {
			title = job.Payload.Title
			next = fmt.Sprintf("%s (%s)", cli.FormatWhen(job.NextFire), humanize.Time(job.NextFire))
		}
		return []string{kind, taskID, title, next, handle}
	}

	var rows [][]string
	ids := index.TaskIDs()
	sort.Strings(ids)
	for _, id := range ids {
		rows = append(rows, row(constants.LineTask, id, index.Tasks[id].Handle))
	}
	if index.Daily != nil {
		rows = append(rows, row(constants.LineDaily, "-", index.Daily.Handle))
	}
	if index.Weekly != nil {
		rows = append(rows, row(constants.LineWeekly, "-", index.Weekly.Handle))
	}
	return rows
}
