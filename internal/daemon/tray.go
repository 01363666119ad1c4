//go:build windows

package daemon

import (
	_ "embed"
	"fmt"
	"syscall"
	"unsafe"

	"fyne.io/systray"
	"go.uber.org/zap"

	"github.com/username/ago/internal/elapsed"
)

//go:embed icon.ico
var iconData []byte

var (
	user32      = syscall.NewLazyDLL("user32.dll")
	messageBoxW = user32.NewProc("MessageBoxW")
)

const (
	MB_OK              = 0x00000000
	MB_ICONINFORMATION = 0x00000040
)

// TrayApp represents system tray application
type TrayApp struct {
	daemon *Daemon
	logger *zap.Logger
	live   elapsed.Result
	quit   *quitSignal
}

// NewTrayApp creates a new system tray application
func NewTrayApp(daemon *Daemon, logger *zap.Logger) (*TrayApp, error) {
	return &TrayApp{
		daemon: daemon,
		logger: logger,
		quit:   newQuitSignal(),
	}, nil
}

// Run starts the system tray application (blocks until Quit)
func (t *TrayApp) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *TrayApp) onReady() {
	systray.SetIcon(iconData)
	systray.SetTitle("Ago")
	systray.SetTooltip("Ago")

	// Add menu items
	mRefresh := systray.AddMenuItem("Refresh", "Report elapsed time now")
	systray.AddSeparator()
	mStatus := systray.AddMenuItem("Status", "Show current status")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit the application")

	t.startLiveTooltip()

	// Start daemon logic in background
	go t.daemon.runScheduledLogic()

	// Handle menu item clicks
	go func() {
		for {
			select {
			case <-mRefresh.ClickedCh:
				t.logger.Info("Refresh clicked from tray")
				go t.daemon.ReportNow()
			case <-mStatus.ClickedCh:
				t.logger.Info("Status clicked from tray")
				t.showStatus()
			case <-mQuit.ClickedCh:
				t.logger.Info("Quit clicked from tray")
				t.live.Stop()
				t.daemon.Stop()
				systray.Quit()
				return
			case <-t.quit.Done():
				t.live.Stop()
				systray.Quit()
				return
			}
		}
	}()
}

// startLiveTooltip keeps the tooltip in step with the elapsed time
func (t *TrayApp) startLiveTooltip() {
	live, err := t.daemon.calc.ElapsedSince(t.daemon.opts.Start, elapsed.LiveOptions{
		Live: true,
		OnUpdate: func(d elapsed.Duration) {
			systray.SetTooltip(t.daemon.Render(d))
		},
	})
	if err != nil {
		t.logger.Error("Failed to start live tooltip", zap.Error(err))
		systray.SetTooltip(elapsed.Duration{}.String())
		return
	}

	t.live = live
	systray.SetTooltip(t.daemon.Render(live.Duration))
	t.logger.Debug("Live tooltip started", zap.String("session_id", live.Session.ID()))
}

func (t *TrayApp) onExit() {
	t.logger.Info("System tray exited")
}

// Stop stops the system tray application. It is safe to call concurrently.
func (t *TrayApp) Stop() {
	t.quit.Close()
}

// ShowNotification shows a notification (Windows only)
func (t *TrayApp) ShowNotification(title, message string) {
	// fyne.io/systray doesn't have built-in notification support
	t.logger.Info("Notification", zap.String("title", title), zap.String("message", message))
}

// showStatus shows current elapsed time and progress
func (t *TrayApp) showStatus() {
	status := t.daemon.GetStatus()
	t.logger.Info("Current status", zap.Any("status", status))

	message := fmt.Sprintf("Start: %v\nToday: %v\nElapsed: %v",
		status["start"], status["today"], status["elapsed"])
	if p, ok := status["progress"].(map[string]interface{}); ok {
		message += fmt.Sprintf("\nEnd: %v\nProgress: %.1f%%\n%v",
			p["end"], p["progress_percent"], p["status"])
	}

	showMessageBox("Ago Status", message)
}

func showMessageBox(title, message string) {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	messagePtr, _ := syscall.UTF16PtrFromString(message)
	messageBoxW.Call(
		0,
		uintptr(unsafe.Pointer(messagePtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		uintptr(MB_OK|MB_ICONINFORMATION),
	)
}
