package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/tickup/internal/cli"
	"github.com/julianstephens/tickup/internal/keyring"
	"github.com/julianstephens/tickup/internal/notifier"
)

const doctorTimeout = 10 * time.Second

type DoctorCmd struct{}

type checkResult int

const (
	checkOK checkResult = iota
	checkFail
	checkWarn
	checkSkip
)

func report(name string, result checkResult, err error) {
	switch result {
	case checkOK:
		fmt.Printf("✓ %s: OK\n", name)
	case checkFail:
		fmt.Printf("❌ %s: FAIL\n", name)
		fmt.Printf("   Error: %v\n", err)
	case checkWarn:
		fmt.Printf("⚠ %s: WARNING\n", name)
		fmt.Printf("   %v\n", err)
	case checkSkip:
		fmt.Printf("⊘ %s: SKIPPED (%v)\n", name, err)
	}
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	c, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	hasError := false
	fail := func(name string, err error) {
		report(name, checkFail, err)
		hasError = true
	}

	// Storage and schema
	storeOK := false
	if err := ctx.Store.Load(); err != nil {
		fail("Storage reachable", err)
	} else {
		report("Storage reachable", checkOK, nil)
		storeOK = true
	}

	// Preferences and alert index
	if storeOK {
		if err := checkPreferences(ctx); err != nil {
			fail("Preferences", err)
		} else {
			report("Preferences", checkOK, nil)
		}
	} else {
		report("Preferences", checkSkip, errors.New("storage not reachable"))
	}

	// Delivery
	if err := checkDelivery(c, ctx.Sink); err != nil {
		report("Delivery", checkWarn, err)
		if errors.Is(err, notifier.ErrTrayNotRunning) {
			fmt.Println("   Start the tray app, or configure telegram in config.yaml")
		}
	} else {
		report(fmt.Sprintf("Delivery (%s)", ctx.Sink.Name()), checkOK, nil)
	}

	// Task source
	if err := checkTaskSource(c, ctx); err != nil {
		if errors.Is(err, cli.ErrNoTaskSource) {
			report("Task source", checkWarn, err)
		} else {
			fail("Task source", err)
		}
	} else {
		report("Task source", checkOK, nil)
	}

	// Timezone
	if _, err := ctx.Config.Location(); err != nil {
		fail("Timezone", err)
	} else {
		report("Timezone", checkOK, nil)
	}

	// Keyring
	if !keyring.IsAvailable() {
		report("OS keyring", checkWarn, keyring.ErrKeyringUnavailable)
	} else {
		report("OS keyring", checkOK, nil)
	}

	fmt.Println()
	if hasError {
		return errors.New("one or more checks failed")
	}
	fmt.Println("All checks passed.")
	return nil
}

func checkPreferences(ctx *cli.Context) error {
	if err := ctx.Engine.Load(); err != nil {
		return err
	}
	prefs, err := ctx.Engine.Preferences()
	if err != nil {
		return err
	}
	return prefs.Validate()
}

func checkDelivery(ctx context.Context, sink notifier.Sink) error {
	if sink == nil {
		return errors.New("no delivery channel configured; alerts cannot be scheduled")
	}
	return sink.Check(ctx)
}

func checkTaskSource(ctx context.Context, app *cli.Context) error {
	src, err := app.TaskSource(ctx)
	if err != nil {
		return err
	}
	tasks, err := src.Tasks(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("   %d tasks available\n", len(tasks))
	return nil
}
