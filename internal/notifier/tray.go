package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/tickup/internal/constants"
)

// ErrTrayNotRunning means no live tray companion was found through its lockfile.
var ErrTrayNotRunning = fmt.Errorf("%s is not running", constants.TrayExecutablePrefix)

// Test seams.
var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// TraySink posts notifications to the desktop tray companion over its local webhook.
type TraySink struct {
	client *http.Client
}

type WebhookPayload struct {
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
	Silent     bool   `json:"silent,omitempty"`
}

func NewTraySink() *TraySink {
	return &TraySink{client: &http.Client{Timeout: 5 * time.Second}}
}

func (t *TraySink) Name() string { return "tray" }

func (t *TraySink) Send(ctx context.Context, msg Message) error {
	ep, err := locateTray()
	if err != nil {
		return err
	}
	return t.post(ctx, ep, WebhookPayload{
		Text:       msg.Text(),
		DurationMs: constants.NotificationDurationMs,
		Silent:     !msg.Sound,
	})
}

func (t *TraySink) Check(context.Context) error {
	_, err := locateTray()
	return err
}

// trayEndpoint is the content of the tray lockfile: "port|pid|secret".
type trayEndpoint struct {
	Port   int
	PID    int
	Secret string
}

func (e trayEndpoint) URL() string {
	return "http://127.0.0.1:" + strconv.Itoa(e.Port)
}

func parseLockfile(content string) (trayEndpoint, error) {
	fields := strings.Split(strings.TrimSpace(content), "|")
	if len(fields) != 3 {
		return trayEndpoint{}, errors.New("tray lockfile is malformed")
	}
	rawPort, rawPID, secret := strings.TrimSpace(fields[0]), fields[1], strings.TrimSpace(fields[2])

	if rawPort == "" {
		return trayEndpoint{}, errors.New("tray lockfile has an empty port")
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return trayEndpoint{}, fmt.Errorf("tray lockfile has an invalid port %q", rawPort)
	}
	if port < 1 || port > 65535 {
		return trayEndpoint{}, fmt.Errorf("tray port %d is outside valid range (1-65535)", port)
	}
	pid, err := strconv.Atoi(rawPID)
	if err != nil {
		return trayEndpoint{}, fmt.Errorf("tray lockfile has an invalid process ID %q", rawPID)
	}
	if secret == "" {
		return trayEndpoint{}, errors.New("tray lockfile has an empty secret")
	}
	return trayEndpoint{Port: port, PID: pid, Secret: secret}, nil
}

// readTrayLockfile parses the lockfile at path and checks that its pid is a live tray process.
func readTrayLockfile(path string) (trayEndpoint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return trayEndpoint{}, ErrTrayNotRunning
	}
	ep, err := parseLockfile(string(content))
	if err != nil {
		return trayEndpoint{}, err
	}

	proc, err := findProcessFunc(ep.PID)
	if err != nil || proc == nil {
		return trayEndpoint{}, fmt.Errorf("%w (stale lockfile, pid %d)", ErrTrayNotRunning, ep.PID)
	}
	if !strings.HasPrefix(proc.Executable(), constants.TrayExecutablePrefix) {
		return trayEndpoint{}, fmt.Errorf("pid %d belongs to %s, not %s", ep.PID, proc.Executable(), constants.TrayExecutablePrefix)
	}
	return ep, nil
}

func locateTray() (trayEndpoint, error) {
	dir, err := GetTrayAppConfigDir()
	if err != nil {
		return trayEndpoint{}, err
	}
	return readTrayLockfile(filepath.Join(dir, constants.NotifierLockfileName))
}

// GetTrayAppConfigDir returns where the tray companion keeps its lockfile. A lockfile_dir
// in the tray's settings.json overrides the default.
func GetTrayAppConfigDir() (string, error) {
	base, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	dir := filepath.Join(base, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if err != nil {
		return dir, nil
	}
	var settings struct {
		Settings struct {
			LockfileDir string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if json.Unmarshal(data, &settings) == nil && settings.Settings.LockfileDir != "" {
		return settings.Settings.LockfileDir, nil
	}
	return dir, nil
}

func (t *TraySink) post(ctx context.Context, ep trayEndpoint, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.TraySecretHeader, ep.Secret)

	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tray webhook: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("tray webhook returned %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
