package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/username/ago/internal/config"
	"github.com/username/ago/internal/elapsed"
	"github.com/username/ago/pkg/jalali"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, defaults Defaults) (*Server, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(date(2025, 5, 19)) // 1404/02/29
	calc := elapsed.NewCalculator(elapsed.WithClock(mock), elapsed.WithLocation(time.UTC))

	if defaults.Start.IsZero() {
		defaults.Start = date(2025, 2, 19)
	}

	cfg := config.ServerConfig{
		RateLimit:          1000,
		CORSAllowedOrigins: []string{"*"},
		MetricsEnabled:     true,
	}
	return New(calc, cfg, defaults, zap.NewNop()), mock
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("response has no request ID")
	}
}

func TestConvert(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	tests := []struct {
		target string
		want   jalali.Date
		leap   bool
	}{
		{"/api/v1/convert?date=2025-03-21", jalali.Date{Year: 1404, Month: 1, Day: 1}, false},
		{"/api/v1/convert?date=2024-03-19", jalali.Date{Year: 1402, Month: 12, Day: 29}, false},
		{"/api/v1/convert?date=2025-03-20", jalali.Date{Year: 1403, Month: 12, Day: 30}, true},
		{"/api/v1/convert", jalali.Date{Year: 1404, Month: 2, Day: 29}, false},
	}

	for _, tt := range tests {
		rec := get(t, s, tt.target)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d: %s", tt.target, rec.Code, http.StatusOK, rec.Body.String())
			continue
		}

		var resp ConvertResponse
		decode(t, rec, &resp)
		if resp.Jalali != tt.want {
			t.Errorf("GET %s jalali = %v, want %v", tt.target, resp.Jalali, tt.want)
		}
		if resp.Formatted != tt.want.String() {
			t.Errorf("GET %s formatted = %q, want %q", tt.target, resp.Formatted, tt.want.String())
		}
		if resp.LeapYear != tt.leap {
			t.Errorf("GET %s leap_year = %v, want %v", tt.target, resp.LeapYear, tt.leap)
		}
	}
}

func TestConvert_InvalidDate(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	rec := get(t, s, "/api/v1/convert?date=not-a-date")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("GET /api/v1/convert?date=not-a-date = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body map[string]interface{}
	decode(t, rec, &body)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "invalid date") {
		t.Errorf("error = %q, want mention of invalid date", msg)
	}
}

func TestDifference(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	tests := []struct {
		target   string
		want     elapsed.Duration
		wantText string
	}{
		{
			"/api/v1/difference?start=2025-02-19&end=2025-05-19",
			elapsed.Duration{Months: 2, Days: 28},
			"2 months, 28 days",
		},
		{
			"/api/v1/difference?start=2025-02-19&end=2025-05-19&format=days",
			elapsed.Duration{Months: 2, Days: 28},
			"89 days",
		},
		{
			"/api/v1/difference?start=2025-05-19&end=2025-02-19",
			elapsed.Duration{Months: 2, Days: 28, Negative: true},
			"2 months, 28 days remaining",
		},
	}

	for _, tt := range tests {
		rec := get(t, s, tt.target)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d: %s", tt.target, rec.Code, http.StatusOK, rec.Body.String())
			continue
		}

		var resp DurationResponse
		decode(t, rec, &resp)
		if resp.Duration != tt.want {
			t.Errorf("GET %s duration = %+v, want %+v", tt.target, resp.Duration, tt.want)
		}
		if resp.Text != tt.wantText {
			t.Errorf("GET %s text = %q, want %q", tt.target, resp.Text, tt.wantText)
		}
	}
}

func TestDifference_BadRequest(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	for _, target := range []string{
		"/api/v1/difference?start=2025-02-19",
		"/api/v1/difference?start=2025-02-19&end=someday",
		"/api/v1/difference?start=2025-02-19&end=2025-05-19&format=weeks",
	} {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestSince(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	tests := []struct {
		target string
		want   elapsed.Duration
		start  string
	}{
		{"/api/v1/since", elapsed.Duration{Months: 2, Days: 28}, "1403/12/01"},
		{"/api/v1/since?date=2025-03-21", elapsed.Duration{Months: 1, Days: 28}, "1404/01/01"},
		{"/api/v1/since?year=1404&month=1&day=1", elapsed.Duration{Months: 1, Days: 28}, "1404/01/01"},
		{"/api/v1/since?year=1404&month=3&day=1", elapsed.Duration{Days: 3, Negative: true}, "1404/03/01"},
	}

	for _, tt := range tests {
		rec := get(t, s, tt.target)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d: %s", tt.target, rec.Code, http.StatusOK, rec.Body.String())
			continue
		}

		var resp DurationResponse
		decode(t, rec, &resp)
		if resp.Duration != tt.want {
			t.Errorf("GET %s duration = %+v, want %+v", tt.target, resp.Duration, tt.want)
		}
		if resp.Start != tt.start {
			t.Errorf("GET %s start = %q, want %q", tt.target, resp.Start, tt.start)
		}
		if resp.End != "1404/02/29" {
			t.Errorf("GET %s end = %q, want 1404/02/29", tt.target, resp.End)
		}
	}
}

func TestSince_OffsetReadInServerZone(t *testing.T) {
	irst := time.FixedZone("IRST", 3*60*60+30*60)
	mock := clock.NewMock()
	mock.Set(date(2025, 5, 19)) // 03:30 IRST, 1404/02/29
	calc := elapsed.NewCalculator(elapsed.WithClock(mock), elapsed.WithLocation(irst))
	cfg := config.ServerConfig{RateLimit: 1000, CORSAllowedOrigins: []string{"*"}}
	s := New(calc, cfg, Defaults{Start: date(2025, 2, 19)}, zap.NewNop())

	// 20:30Z on 2025-02-18 is already 2025-02-19 in Tehran
	target := "/api/v1/since?date=2025-02-18T20:30:00Z"
	rec := get(t, s, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s = %d, want %d: %s", target, rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp DurationResponse
	decode(t, rec, &resp)
	if resp.Start != "1403/12/01" {
		t.Errorf("GET %s start = %q, want 1403/12/01", target, resp.Start)
	}
	if want := (elapsed.Duration{Months: 2, Days: 28}); resp.Duration != want {
		t.Errorf("GET %s duration = %+v, want %+v", target, resp.Duration, want)
	}
}

func TestSince_BadRequest(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	for _, target := range []string{
		"/api/v1/since?year=1404&month=13&day=1",
		"/api/v1/since?year=1404&month=1&day=32",
		"/api/v1/since?year=1404",
		"/api/v1/since?date=31/31/2025",
	} {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestProgress(t *testing.T) {
	s, _ := newTestServer(t, Defaults{End: date(2025, 8, 17)})

	rec := get(t, s, "/api/v1/progress")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/progress = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp ProgressResponse
	decode(t, rec, &resp)
	if resp.TotalDays != 179 {
		t.Errorf("total_days = %d, want 179", resp.TotalDays)
	}
	if resp.RemainingDays != 90 {
		t.Errorf("remaining_days = %d, want 90", resp.RemainingDays)
	}
	if !resp.Started || resp.Complete {
		t.Errorf("started, complete = %v, %v, want true, false", resp.Started, resp.Complete)
	}
}

func TestProgress_BadRequest(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	for _, target := range []string{
		"/api/v1/progress",
		"/api/v1/progress?end=2025-01-01",
		"/api/v1/progress?end=never",
	} {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want %d", target, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	get(t, s, "/api/v1/convert?date=2025-03-21")

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, name := range []string{
		`ago_conversions_total{endpoint="convert"} 1`,
		"ago_http_requests_total",
		"ago_live_sessions_active 0",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func readEvent(t *testing.T, r *bufio.Reader) StreamEvent {
	t.Helper()

	type result struct {
		event StreamEvent
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var ev StreamEvent
				ch <- result{event: ev, err: json.Unmarshal([]byte(data), &ev)}
				return
			}
		}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("failed to read event: %v", res.err)
		}
		return res.event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
	}
	return StreamEvent{}
}

func TestSinceStream(t *testing.T) {
	s, mock := newTestServer(t, Defaults{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/since/stream", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/v1/since/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	if want := (elapsed.Duration{Months: 2, Days: 28}); first.Duration != want {
		t.Errorf("first event duration = %+v, want %+v", first.Duration, want)
	}
	if got := s.metrics.activeSessions(); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}

	mock.Add(time.Second)
	second := readEvent(t, r)
	if second.SessionID != first.SessionID {
		t.Errorf("session ID changed from %s to %s", first.SessionID, second.SessionID)
	}
	if second.ID == first.ID {
		t.Errorf("events share ID %s", first.ID)
	}

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.metrics.activeSessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("live session not stopped after client disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSinceStream_InvalidStart(t *testing.T) {
	s, _ := newTestServer(t, Defaults{})

	if rec := get(t, s, "/api/v1/since/stream?date=garbage"); rec.Code != http.StatusBadRequest {
		t.Errorf("GET /api/v1/since/stream?date=garbage = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
