package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	TEST_TASK_DUE_IN          = 8 * time.Second
	TEST_NOTIFICATION_TIMEOUT = 60 * time.Second
)

// taskAPI serves one task due shortly, in the shape the task backend returns.
func taskAPI(t *testing.T, due time.Time) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks/user/e2e" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{{
				"id":           42,
				"title":        "E2E Task",
				"due_date":     due.Format(time.RFC3339),
				"status":       "Pending",
				"is_completed": false,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEndToEndWorkflow(t *testing.T) {
	// 1. Setup Environment
	// Allow overriding bin dir via env var, default to ../../bin (relative to tests/e2e)
	binDir := os.Getenv("TICKUP_BIN_DIR")
	if binDir == "" {
		binDir = filepath.Join("..", "..", "bin")
	}
	binDir, _ = filepath.Abs(binDir)

	cliPath := filepath.Join(binDir, "tickup")
	if _, err := os.Stat(cliPath); os.IsNotExist(err) {
		t.Skipf("CLI binary not found at %s. Build it with 'go build -o bin/tickup ./cmd/tickup' first.", cliPath)
	}

	tempDir := t.TempDir()
	t.Logf("Running test in temp dir: %s", tempDir)

	due := time.Now().Add(TEST_TASK_DUE_IN).Truncate(time.Second).Add(time.Second)
	api := taskAPI(t, due)

	var cleanEnv []string
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "HOME=") && !strings.HasPrefix(e, "TICKUP_") {
			cleanEnv = append(cleanEnv, e)
		}
	}
	cleanEnv = append(cleanEnv,
		fmt.Sprintf("HOME=%s", tempDir),
		fmt.Sprintf("TICKUP_STORE=%s", filepath.Join(tempDir, "tickup", "tickup.db")),
		fmt.Sprintf("TICKUP_API_URL=%s", api.URL),
		"TICKUP_USER_ID=e2e",
		"TICKUP_TIMEZONE=UTC",
	)

	// 2. Initialize and configure
	t.Log("Initializing CLI...")
	runCmd(t, cliPath, cleanEnv, "init")
	runCmd(t, cliPath, cleanEnv, "--dry-run", "prefs", "set", "--lead=0", "--daily-time=7:30 AM")

	out := runCmd(t, cliPath, cleanEnv, "--dry-run", "reconcile")
	t.Logf("Reconcile output: %s", out)

	out = runCmd(t, cliPath, cleanEnv, "alerts", "list")
	for _, want := range []string{"task", "42", "daily", "weekly"} {
		if !strings.Contains(out, want) {
			t.Errorf("alerts list missing %q:\n%s", want, out)
		}
	}

	runCmd(t, cliPath, cleanEnv, "--dry-run", "notify", "test")

	// 3. Run the daemon until the task reminder is delivered
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon := exec.CommandContext(ctx, cliPath, "--dry-run", "--debug", "daemon", "--interval=1s")
	daemon.Env = cleanEnv
	stderr, err := daemon.StderrPipe()
	if err != nil {
		t.Fatalf("Failed to get stderr pipe: %v", err)
	}
	if err := daemon.Start(); err != nil {
		t.Fatalf("Failed to start daemon: %v", err)
	}
	defer func() {
		cancel()
		_ = daemon.Wait()
	}()

	doneCh := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.Contains(line, "Notification") && strings.Contains(line, "E2E Task") {
				t.Logf("Found delivery log: %s", line)
				close(doneCh)
				return
			}
		}
	}()

	select {
	case <-doneCh:
		t.Log("Verified notification flow!")
	case <-time.After(TEST_NOTIFICATION_TIMEOUT):
		t.Fatal("Timed out waiting for the task reminder to be delivered")
	}

	// 4. Completing a task whose reminder already fired still succeeds
	cancel()
	_ = daemon.Wait()
	runCmd(t, cliPath, cleanEnv, "task", "complete", "42")
}

func runCmd(t *testing.T, path string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command(path, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Command %s %v failed: %v\nOutput: %s", path, args, err, out)
	}
	return string(out)
}
