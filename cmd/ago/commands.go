package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/username/ago/internal/daemon"
	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/internal/progress"
	"github.com/username/ago/internal/server"
	"github.com/username/ago/pkg/dateutil"
	"github.com/username/ago/pkg/jalali"
)

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert [date]",
		Short: "Convert a Gregorian date (default today) to the Jalali calendar",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := newCalculator()
			if err != nil {
				return err
			}

			t := calc.Now()
			if len(args) == 1 {
				t, err = dateutil.ParseDate(args[0], calc.Location())
				if err != nil {
					return err
				}
			}

			d, err := jalali.ToJalali(t)
			if err != nil {
				return err
			}

			outPrintf("%s → %s\n", t.Format("2006-01-02"), d)
			return nil
		},
	}
}

func sinceCmd() *cobra.Command {
	var (
		jalaliDate string
		live       bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "since [date]",
		Short: "Show the calendar time elapsed since a date (default the configured start)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := newCalculator()
			if err != nil {
				return err
			}
			displayFormat, err := resolveFormat(format)
			if err != nil {
				return err
			}

			var (
				res    elapsed.Result
				start  time.Time
				render func(elapsed.Duration) string
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := elapsed.LiveOptions{Live: live}
			if live {
				opts.OnUpdate = func(d elapsed.Duration) {
					outPrintf("%s  %s\n", calc.Now().Format("15:04:05"), render(d))
				}
			}

			if jalaliDate != "" {
				year, month, day, err := dateutil.ParseJalali(jalaliDate)
				if err != nil {
					return err
				}
				// Day totals need a Gregorian start
				if displayFormat == elapsed.FormatDays {
					displayFormat = elapsed.FormatYears
				}
				render = func(d elapsed.Duration) string {
					return elapsed.Render(d, displayFormat, 0)
				}
				res, err = calc.ElapsedSinceJalali(year, month, day, opts)
				if err != nil {
					return err
				}
			} else {
				start, err = startArg(args, calc.Location())
				if err != nil {
					return err
				}
				render = func(d elapsed.Duration) string {
					return elapsed.Render(d, displayFormat, dateutil.DaysBetween(start, calc.Now()))
				}
				res, err = calc.ElapsedSince(start, opts)
				if err != nil {
					return err
				}
			}

			outPrintln(render(res.Duration))

			if res.Session == nil {
				return nil
			}

			logger.Debug("Live session started",
				zap.String("session_id", res.Session.ID()),
				zap.Duration("interval", res.Session.Interval()))

			<-ctx.Done()
			res.Stop()
			logger.Debug("Live session stopped", zap.String("session_id", res.Session.ID()))
			return nil
		},
	}

	cmd.Flags().StringVar(&jalaliDate, "jalali", "", "Start as a Jalali date (YYYY/MM/DD)")
	cmd.Flags().BoolVar(&live, "live", false, "Keep recomputing until interrupted")
	cmd.Flags().StringVar(&format, "format", "", "Display format: days, months or years")

	return cmd
}

func betweenCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "between <start> <end>",
		Short: "Show the Jalali calendar difference between two dates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := newCalculator()
			if err != nil {
				return err
			}
			displayFormat, err := resolveFormat(format)
			if err != nil {
				return err
			}

			start, err := dateutil.ParseDate(args[0], calc.Location())
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			end, err := dateutil.ParseDate(args[1], calc.Location())
			if err != nil {
				return fmt.Errorf("end: %w", err)
			}

			d, err := calc.Difference(start, end)
			if err != nil {
				return err
			}

			outPrintln(elapsed.Render(d, displayFormat, dateutil.DaysBetween(start, end)))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Display format: days, months or years")

	return cmd
}

func progressCmd() *cobra.Command {
	var startFlag, endFlag string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show progress through the configured date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := newCalculator()
			if err != nil {
				return err
			}
			loc := calc.Location()

			start, err := cfg.Dates.StartDate(loc)
			if err != nil {
				return err
			}
			if startFlag != "" {
				if start, err = dateutil.ParseDate(startFlag, loc); err != nil {
					return fmt.Errorf("start: %w", err)
				}
			}

			end, ok, err := cfg.Dates.EndDate(loc)
			if err != nil {
				return err
			}
			if endFlag != "" {
				if end, err = dateutil.ParseDate(endFlag, loc); err != nil {
					return fmt.Errorf("end: %w", err)
				}
				if err := progress.ValidateEndDate(end, calc.Now()); err != nil {
					return err
				}
				ok = true
			}
			if !ok {
				return errors.New("no end date: set dates.end or pass --end")
			}

			p, err := progress.Compute(calc, start, end, calc.Now())
			if err != nil {
				return err
			}

			js, _ := jalali.ToJalali(start)
			je, _ := jalali.ToJalali(end)
			outPrintf("Range:     %s .. %s\n", js, je)
			outPrintf("Progress:  %.1f%%\n", p.Percent)
			outPrintf("Days:      %d total, %d remaining\n", p.TotalDays, p.RemainingDays)
			if !p.Complete {
				outPrintf("Remaining: %s\n", p.Remaining)
			}
			outPrintf("Status:    %s\n", p.Status())
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Range start (default dates.start)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Range end, not before today (default dates.end)")

	return cmd
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Report elapsed time on a schedule, optionally in the system tray",
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := newCalculator()
			if err != nil {
				return err
			}

			start, err := cfg.Dates.StartDate(calc.Location())
			if err != nil {
				return err
			}
			end, _, err := cfg.Dates.EndDate(calc.Location())
			if err != nil {
				return err
			}

			d, err := daemon.NewDaemon(calc, daemon.Options{
				Start:      start,
				End:        end,
				Format:     cfg.Dates.GetDisplayFormat(),
				Schedule:   cfg.Daemon.Schedule,
				SystemTray: cfg.Daemon.SystemTray,
			}, logger)
			if err != nil {
				return err
			}

			return d.Start()
		},
	}
}

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			calc, err := newCalculator()
			if err != nil {
				return err
			}

			start, err := cfg.Dates.StartDate(calc.Location())
			if err != nil {
				return err
			}
			end, _, err := cfg.Dates.EndDate(calc.Location())
			if err != nil {
				return err
			}

			srv := server.New(calc, cfg.Server, server.Defaults{
				Start:  start,
				End:    end,
				Format: cfg.Dates.GetDisplayFormat(),
			}, logger)

			address := cfg.Server.Listen
			if listen != "" {
				address = listen
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("Received signal, shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default server.listen)")

	return cmd
}

// startArg returns the date argument, or the configured start when absent
func startArg(args []string, loc *time.Location) (time.Time, error) {
	if len(args) == 1 {
		t, err := dateutil.ParseDate(args[0], loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("start: %w", err)
		}
		return t, nil
	}
	return cfg.Dates.StartDate(loc)
}

func resolveFormat(flag string) (elapsed.DisplayFormat, error) {
	if flag == "" {
		return cfg.Dates.GetDisplayFormat(), nil
	}
	return elapsed.ParseDisplayFormat(flag)
}
