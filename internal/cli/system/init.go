package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/tickup/internal/backup"
	"github.com/julianstephens/tickup/internal/cli"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing SQLite database before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if ctx.Config.IsPostgres() {
			return fmt.Errorf("--force is only supported for SQLite storage")
		}
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			// Close first to release the file
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			snapshot, err := backup.NewManager(dbPath).Take()
			if err != nil {
				return fmt.Errorf("failed to back up existing database: %w", err)
			}
			fmt.Printf("Backed up existing database to: %s\n", snapshot)
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	// writes default preferences on first run
	if err := ctx.Engine.Load(); err != nil {
		return err
	}

	fmt.Printf("Initialized tickup storage at: %s\n", ctx.Store.GetConfigPath())
	return nil
}
