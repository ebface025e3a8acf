package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/tickup/internal/cli"
)

type NotifyTestCmd struct {
	Timeout time.Duration `default:"10s" help:"Give up on delivery after this long."`
}

func (cmd *NotifyTestCmd) Run(ctx *cli.Context) error {
	c, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	if err := ctx.Engine.SendTest(c, ctx.Scheduler); err != nil {
		return fmt.Errorf("failed to send test notification: %w", err)
	}

	fmt.Printf("✓ Test notification sent via %s\n", sinkName(ctx))
	return nil
}
