package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/internal/progress"
	"github.com/username/ago/pkg/dateutil"
	"github.com/username/ago/pkg/jalali"
)

// Options configures what the daemon reports and when
type Options struct {
	Start      time.Time
	End        time.Time // Zero when no range end is configured
	Format     elapsed.DisplayFormat
	Schedule   string // Cron spec for the digest
	SystemTray bool   // Show system tray icon (Windows only)
}

// Digest is one scheduled report of the elapsed time
type Digest struct {
	Date     jalali.Date
	Elapsed  elapsed.Duration
	Text     string
	Progress *progress.Progress
}

// Daemon represents the daemon process
type Daemon struct {
	calc        *elapsed.Calculator
	opts        Options
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	cron        *cron.Cron
	trayApp     *TrayApp
	lastRunDate string // Track last digest date to avoid duplicates
	lastDigest  *Digest
	mu          sync.Mutex
}

// NewDaemon creates a new daemon instance
func NewDaemon(calc *elapsed.Calculator, opts Options, logger *zap.Logger) (*Daemon, error) {
	if opts.Start.IsZero() {
		return nil, fmt.Errorf("start: %w", jalali.ErrInvalidDate)
	}
	if opts.Format == "" {
		opts.Format = elapsed.FormatYears
	}

	c := cron.New(cron.WithLocation(calc.Location()))
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		calc:   calc,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		cron:   c,
	}

	if _, err := c.AddFunc(opts.Schedule, d.runScheduled); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
	}

	return d, nil
}

// Start starts the daemon and blocks until it is stopped
func (d *Daemon) Start() error {
	// Initialize system tray if enabled (Windows only)
	if d.opts.SystemTray {
		d.logger.Info("Initializing system tray")
		trayApp, err := NewTrayApp(d, d.logger)
		if err != nil {
			d.logger.Warn("Failed to initialize system tray", zap.Error(err))
			// Fall back to non-tray mode
			return d.startWithoutTray()
		}
		d.trayApp = trayApp
		// Run tray (blocks until Quit)
		d.trayApp.Run()
		return nil
	}

	d.logger.Info("Running without system tray")
	return d.startWithoutTray()
}

func (d *Daemon) startWithoutTray() error {
	d.logger.Info("Starting console mode")
	d.runScheduledLogic()
	return nil
}

// runScheduledLogic reports once, then hands the schedule to cron until shutdown
func (d *Daemon) runScheduledLogic() {
	d.logger.Info("Daemon scheduled logic started",
		zap.String("schedule", d.opts.Schedule),
		zap.String("timezone", d.calc.Location().String()),
		zap.Time("start", d.opts.Start))

	d.runScheduled()

	d.cron.Start()
	d.logNextRun()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-d.ctx.Done():
		d.logger.Info("Daemon stopped")

	case sig := <-sigChan:
		d.logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
		d.Stop()
	}

	<-d.cron.Stop().Done()
	if d.trayApp != nil {
		d.trayApp.Stop()
	}
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	d.cancel()
}

// Done is closed once Stop has been called
func (d *Daemon) Done() <-chan struct{} {
	return d.ctx.Done()
}

func (d *Daemon) runScheduled() {
	digest, err := d.RunDigest(false)
	if err != nil {
		d.logger.Error("Digest failed", zap.Error(err))
		if d.trayApp != nil {
			d.trayApp.ShowNotification("Digest Failed", fmt.Sprintf("Error: %v", err))
		}
		return
	}
	if digest == nil {
		d.logger.Debug("Already reported today, skipping")
		return
	}
	if d.trayApp != nil {
		d.trayApp.ShowNotification("Elapsed Time", digest.Text)
	}
	d.logNextRun()
}

// RunDigest computes and logs today's digest. Unless force is set, a digest
// already produced today is not repeated and nil is returned.
func (d *Daemon) RunDigest(force bool) (*Digest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.calc.Now()
	today := now.Format("2006-01-02")
	if !force && d.lastRunDate == today {
		return nil, nil
	}

	digest, err := d.buildDigest(now)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("jalali_date", digest.Date.String()),
		zap.String("elapsed", digest.Text),
		zap.Int("years", digest.Elapsed.Years),
		zap.Int("months", digest.Elapsed.Months),
		zap.Int("days", digest.Elapsed.Days),
	}
	if digest.Progress != nil {
		fields = append(fields,
			zap.Float64("progress_percent", digest.Progress.Percent),
			zap.Int("remaining_days", digest.Progress.RemainingDays),
			zap.Bool("complete", digest.Progress.Complete))
	}
	d.logger.Info("Elapsed time digest", fields...)

	d.lastRunDate = today
	d.lastDigest = digest
	return digest, nil
}

func (d *Daemon) buildDigest(now time.Time) (*Digest, error) {
	today, err := jalali.ToJalali(now)
	if err != nil {
		return nil, err
	}

	dur, err := d.calc.Difference(d.opts.Start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to compute elapsed time: %w", err)
	}

	digest := &Digest{
		Date:    today,
		Elapsed: dur,
		Text:    d.Render(dur),
	}

	if !d.opts.End.IsZero() {
		p, err := progress.Compute(d.calc, d.opts.Start, d.opts.End, now)
		if err != nil {
			return nil, fmt.Errorf("failed to compute progress: %w", err)
		}
		digest.Progress = &p
	}

	return digest, nil
}

// Render formats dur with the configured display format
func (d *Daemon) Render(dur elapsed.Duration) string {
	totalDays := dateutil.DaysBetween(d.opts.Start, d.calc.Now())
	return elapsed.Render(dur, d.opts.Format, totalDays)
}

// ReportNow triggers an immediate digest (called from tray menu)
func (d *Daemon) ReportNow() {
	d.logger.Info("Manual digest triggered from tray")
	digest, err := d.RunDigest(true)
	if err != nil {
		d.logger.Error("Manual digest failed", zap.Error(err))
		if d.trayApp != nil {
			d.trayApp.ShowNotification("Digest Failed", fmt.Sprintf("Error: %v", err))
		}
		return
	}
	if d.trayApp != nil {
		d.trayApp.ShowNotification("Elapsed Time", digest.Text)
	}
}

// GetStatus returns daemon status
func (d *Daemon) GetStatus() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := map[string]interface{}{
		"running":        d.ctx.Err() == nil,
		"schedule":       d.opts.Schedule,
		"display_format": string(d.opts.Format),
		"start":          d.opts.Start.Format("2006-01-02"),
		"last_run_date":  d.lastRunDate,
	}

	if d.lastDigest != nil {
		status["last_digest"] = d.lastDigest.Text
	}
	if next := d.nextRun(); !next.IsZero() {
		status["next_run"] = dateutil.FormatISO8601(next)
	}

	digest, err := d.buildDigest(d.calc.Now())
	if err != nil {
		// Core failures show the neutral text rather than an error
		status["elapsed"] = elapsed.Duration{}.String()
		return status
	}

	status["today"] = digest.Date.String()
	status["elapsed"] = digest.Text
	if digest.Progress != nil {
		status["progress"] = map[string]interface{}{
			"end":              d.opts.End.Format("2006-01-02"),
			"progress_percent": digest.Progress.Percent,
			"remaining_days":   digest.Progress.RemainingDays,
			"total_days":       digest.Progress.TotalDays,
			"status":           digest.Progress.Status(),
		}
	}

	return status
}

func (d *Daemon) nextRun() time.Time {
	entries := d.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (d *Daemon) logNextRun() {
	next := d.nextRun()
	if next.IsZero() {
		return
	}
	d.logger.Info("Next digest scheduled",
		zap.Time("next_run", next),
		zap.Duration("wait_duration", time.Until(next)))
}
