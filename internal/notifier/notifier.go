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
	"sync"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/nextup/internal/constants"
	"github.com/julianstephens/nextup/internal/logger"
	"github.com/julianstephens/nextup/internal/models"
)

const trayExecutable = "nextup-tray"

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// ErrTrayNotRunning is returned when no tray app is listening.
var ErrTrayNotRunning = errors.New("nextup-tray is not running")

// WebhookPayload is the body posted to the tray app.
type WebhookPayload struct {
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

// deliverFunc sends one payload. Swapped in tests.
type deliverFunc func(ctx context.Context, payload WebhookPayload) error

// Notifier posts task and toast notifications to the tray app. Delayed
// task notifications stay pending until they fire or CancelPending is
// called.
type Notifier struct {
	deliver    deliverFunc
	client     *http.Client
	retries    int
	retryDelay time.Duration

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*time.Timer
}

// New returns a notifier that talks to the tray app found through its
// lockfile.
func New() *Notifier {
	n := &Notifier{
		client:     &http.Client{Timeout: 5 * time.Second},
		retries:    constants.NotifyMaxRetries,
		retryDelay: constants.NotifyRetryDelay,
		pending:    make(map[uint64]*time.Timer),
	}
	n.deliver = n.deliverToTray
	return n
}

func enabled(settings models.Settings) bool {
	return settings.Enabled && settings.NotificationsEnabled
}

// TaskMessage renders the notification text for a shuffled task.
func TaskMessage(task models.Task, minutes int) string {
	if minutes <= 0 {
		return fmt.Sprintf("Next up: %s", task.Title)
	}
	return fmt.Sprintf("Next up: %s (%d min)", task.Title, minutes)
}

// NotifyTask announces task. With a positive delay the notification is
// scheduled and can be withdrawn with CancelPending.
func (n *Notifier) NotifyTask(ctx context.Context, task models.Task, minutes int, settings models.Settings, delay time.Duration) error {
	if !enabled(settings) {
		logger.Debug("Notifications disabled, skipping task notification", "task", task.ID)
		return nil
	}

	payload := WebhookPayload{
		Title:      constants.AppName,
		Text:       TaskMessage(task, minutes),
		DurationMs: constants.NotificationDurationMs,
	}
	if delay <= 0 {
		return n.send(ctx, payload)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.pending[id] = time.AfterFunc(delay, func() {
		n.mu.Lock()
		_, live := n.pending[id]
		delete(n.pending, id)
		n.mu.Unlock()
		if !live {
			return
		}
		sendCtx, cancel := context.WithTimeout(context.Background(), constants.PeerRequestTimeout)
		defer cancel()
		if err := n.send(sendCtx, payload); err != nil {
			logger.Warn("Delayed task notification failed", "task", task.ID, "error", err)
		}
	})
	logger.Debug("Scheduled task notification", "task", task.ID, "delay", delay)
	return nil
}

// ShowToast shows a short informational message.
func (n *Notifier) ShowToast(ctx context.Context, title, message string, settings models.Settings) error {
	if !enabled(settings) {
		return nil
	}
	return n.send(ctx, WebhookPayload{
		Title:      title,
		Text:       message,
		DurationMs: constants.NotificationDurationMs,
	})
}

// CancelPending withdraws every scheduled notification that has not fired.
func (n *Notifier) CancelPending(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, timer := range n.pending {
		timer.Stop()
		delete(n.pending, id)
	}
	return nil
}

// Pending reports how many delayed notifications are scheduled.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// send delivers payload, retrying transient failures. A missing tray app
// is not retried.
func (n *Notifier) send(ctx context.Context, payload WebhookPayload) error {
	var err error
	for attempt := 0; attempt < n.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.retryDelay):
			}
		}
		err = n.deliver(ctx, payload)
		if err == nil || errors.Is(err, ErrTrayNotRunning) {
			return err
		}
		logger.Debug("Notification attempt failed", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("notification failed after %d attempts: %w", n.retries, err)
}

func (n *Notifier) deliverToTray(ctx context.Context, payload WebhookPayload) error {
	dir, err := GetTrayAppConfigDir()
	if err != nil {
		return err
	}
	port, secret, err := findAndValidateTrayProcess(filepath.Join(dir, constants.NotifierLockfileName))
	if err != nil {
		return err
	}
	return sendNotification(ctx, n.client, fmt.Sprintf("http://127.0.0.1:%s", port), secret, payload)
}

// GetTrayAppConfigDir returns the directory holding the tray app lockfile.
func GetTrayAppConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	trayConfigDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	// settings.json may point the lockfile elsewhere
	data, err := os.ReadFile(filepath.Join(trayConfigDir, "settings.json"))
	if err == nil {
		var store struct {
			Settings struct {
				LockfileDir *string `json:"lockfile_dir"`
			} `json:"settings"`
		}
		if err := json.Unmarshal(data, &store); err == nil {
			if dir := store.Settings.LockfileDir; dir != nil && *dir != "" {
				return *dir, nil
			}
		}
	}

	return trayConfigDir, nil
}

func findAndValidateTrayProcess(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", ErrTrayNotRunning
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("lockfile is malformed")
	}

	port := strings.TrimSpace(parts[0])
	if port == "" {
		return "", "", errors.New("port in lockfile is empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return "", "", errors.New("invalid port number in lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return "", "", fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", "", errors.New("invalid process ID in lockfile")
	}
	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return "", "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", ErrTrayNotRunning
	}
	if !strings.HasPrefix(process.Executable(), trayExecutable) {
		return "", "", fmt.Errorf("process with PID %d is not %s (is %s)", pid, trayExecutable, process.Executable())
	}

	return port, secret, nil
}

func sendNotification(ctx context.Context, client *http.Client, url, secret string, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.NotifierSecretHeader, secret)

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(res.Body)
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
}
