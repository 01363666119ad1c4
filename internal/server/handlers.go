package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/internal/progress"
	"github.com/username/ago/pkg/dateutil"
	"github.com/username/ago/pkg/jalali"
)

// ConvertRequest selects the Gregorian date to convert, today when empty
type ConvertRequest struct {
	Date string `query:"date"`
}

// ConvertResponse is a single Gregorian to Jalali conversion
type ConvertResponse struct {
	Gregorian string      `json:"gregorian"`
	Jalali    jalali.Date `json:"jalali"`
	Formatted string      `json:"formatted"`
	LeapYear  bool        `json:"leap_year"`
}

// DifferenceRequest names both endpoints of a difference
type DifferenceRequest struct {
	Start  string `query:"start" validate:"required"`
	End    string `query:"end" validate:"required"`
	Format string `query:"format" validate:"omitempty,oneof=days months years"`
}

// SinceRequest names a start date, either Gregorian or as a Jalali triple
type SinceRequest struct {
	Date   string `query:"date"`
	Year   int    `query:"year" validate:"omitempty,min=1"`
	Month  int    `query:"month" validate:"required_with=Year"`
	Day    int    `query:"day" validate:"required_with=Year"`
	Format string `query:"format" validate:"omitempty,oneof=days months years"`
}

// ProgressRequest overrides the configured range
type ProgressRequest struct {
	Start string `query:"start"`
	End   string `query:"end"`
}

// DurationResponse carries a calendar difference and its rendering
type DurationResponse struct {
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Duration  elapsed.Duration `json:"duration"`
	Text      string           `json:"text"`
	TotalDays *int             `json:"total_days,omitempty"`
}

// ProgressResponse is the position of today within a range
type ProgressResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	progress.Progress
	Status string `json:"status"`
}

func (s *Server) convert(c echo.Context) error {
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	t := s.calc.Now()
	if req.Date != "" {
		parsed, err := dateutil.ParseDate(req.Date, s.calc.Location())
		if err != nil {
			return err
		}
		t = parsed
	}

	d, err := jalali.ToJalali(t)
	if err != nil {
		return err
	}
	s.metrics.conversions.WithLabelValues("convert").Inc()

	return c.JSON(http.StatusOK, ConvertResponse{
		Gregorian: t.Format("2006-01-02"),
		Jalali:    d,
		Formatted: d.String(),
		LeapYear:  jalali.IsLeapYear(d.Year),
	})
}

func (s *Server) difference(c echo.Context) error {
	var req DifferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, err := dateutil.ParseDate(req.Start, s.calc.Location())
	if err != nil {
		return err
	}
	end, err := dateutil.ParseDate(req.End, s.calc.Location())
	if err != nil {
		return err
	}

	d, err := s.calc.Difference(start, end)
	if err != nil {
		return err
	}
	s.metrics.conversions.WithLabelValues("difference").Add(2)

	return c.JSON(http.StatusOK, s.durationResponse(start, end, d, req.Format))
}

func (s *Server) since(c echo.Context) error {
	var req SinceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Year != 0 {
		res, err := s.calc.ElapsedSinceJalali(req.Year, req.Month, req.Day, elapsed.LiveOptions{})
		if err != nil {
			return err
		}
		s.metrics.conversions.WithLabelValues("since").Inc()

		today, err := jalali.ToJalali(s.calc.Now())
		if err != nil {
			return err
		}
		start := jalali.Date{Year: req.Year, Month: req.Month, Day: req.Day}

		// No Gregorian start, so day totals are unavailable
		format := s.displayFormat(req.Format)
		if format == elapsed.FormatDays {
			format = elapsed.FormatYears
		}
		return c.JSON(http.StatusOK, DurationResponse{
			Start:    start.String(),
			End:      today.String(),
			Duration: res.Duration,
			Text:     elapsed.Render(res.Duration, format, 0),
		})
	}

	start, err := s.startDate(req.Date)
	if err != nil {
		return err
	}
	res, err := s.calc.ElapsedSince(start, elapsed.LiveOptions{})
	if err != nil {
		return err
	}
	s.metrics.conversions.WithLabelValues("since").Add(2)

	return c.JSON(http.StatusOK, s.durationResponse(start, s.calc.Now(), res.Duration, req.Format))
}

func (s *Server) rangeProgress(c echo.Context) error {
	var req ProgressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	start, err := s.startDate(req.Start)
	if err != nil {
		return err
	}

	end := s.defaults.End
	if req.End != "" {
		end, err = dateutil.ParseDate(req.End, s.calc.Location())
		if err != nil {
			return err
		}
	}
	if end.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "end date is required when none is configured")
	}

	p, err := progress.Compute(s.calc, start, end, s.calc.Now())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ProgressResponse{
		Start:    start.Format("2006-01-02"),
		End:      end.Format("2006-01-02"),
		Progress: p,
		Status:   p.Status(),
	})
}

// startDate parses value, falling back to the configured start
func (s *Server) startDate(value string) (time.Time, error) {
	if value == "" {
		return s.defaults.Start, nil
	}
	return dateutil.ParseDate(value, s.calc.Location())
}

func (s *Server) displayFormat(value string) elapsed.DisplayFormat {
	if value == "" {
		return s.defaults.Format
	}
	format, err := elapsed.ParseDisplayFormat(value)
	if err != nil {
		return s.defaults.Format
	}
	return format
}

func (s *Server) durationResponse(start, end time.Time, d elapsed.Duration, format string) DurationResponse {
	totalDays := dateutil.DaysBetween(start, end)

	resp := DurationResponse{
		Start:     start.Format("2006-01-02"),
		End:       end.Format("2006-01-02"),
		Duration:  d,
		Text:      elapsed.Render(d, s.displayFormat(format), totalDays),
		TotalDays: &totalDays,
	}

	// Jalali endpoints are more useful to clients than Gregorian ones
	if js, err := jalali.ToJalali(start); err == nil {
		resp.Start = js.String()
	} else {
		s.logger.Debug("Start date not convertible", zap.Error(err))
	}
	if je, err := jalali.ToJalali(end); err == nil {
		resp.End = je.String()
	}

	return resp
}
