package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/pkg/dateutil"
)

// StreamRequest selects the Gregorian start of a live stream
type StreamRequest struct {
	Date   string `query:"date"`
	Format string `query:"format" validate:"omitempty,oneof=days months years"`
}

// StreamEvent is one server-sent elapsed-time update
type StreamEvent struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Duration  elapsed.Duration `json:"duration"`
	Text      string           `json:"text"`
	At        time.Time        `json:"at"`
}

// sinceStream sends the elapsed time as server-sent events, one live session
// per request, until the client disconnects
func (s *Server) sinceStream(c echo.Context) error {
	var req StreamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start, err := s.startDate(req.Date)
	if err != nil {
		return err
	}
	format := s.displayFormat(req.Format)

	// The session must never block on a slow client, so updates are dropped
	// while one is still pending
	updates := make(chan elapsed.Duration, 1)
	res, err := s.calc.ElapsedSince(start, elapsed.LiveOptions{
		Live: true,
		OnUpdate: func(d elapsed.Duration) {
			select {
			case updates <- d:
			default:
			}
		},
	})
	if err != nil {
		return err
	}
	defer res.Stop()

	s.metrics.liveSessions.Inc()
	defer s.metrics.liveSessions.Dec()

	sessionID := res.Session.ID()
	logger := s.logger.With(zap.String("session_id", sessionID))
	logger.Info("Live stream started", zap.Time("start", start))
	defer logger.Info("Live stream stopped")

	// Streams outlive the server write timeout
	_ = http.NewResponseController(c.Response().Writer).SetWriteDeadline(time.Time{})

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(d elapsed.Duration) error {
		now := s.calc.Now()
		event := StreamEvent{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Duration:  d,
			Text:      elapsed.Render(d, format, dateutil.DaysBetween(start, now)),
			At:        now,
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %s\nevent: elapsed\ndata: %s\n\n", event.ID, data); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	if err := send(res.Duration); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-updates:
			if err := send(d); err != nil {
				logger.Debug("Client write failed", zap.Error(err))
				return nil
			}
		}
	}
}
