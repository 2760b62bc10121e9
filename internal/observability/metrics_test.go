package observability

import (
	"testing"
	"time"

	"github.com/spec-kit/thelewala-agent/internal/config"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/auth/customer/signin", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/auth/customer/signin", "POST", 200, 5*time.Millisecond)
	m.RecordError("/auth/customer/refresh-token", "POST", "AUTH_FAILURE")
	m.RecordFrame("out", "customerPeriodicUpdates")
	m.RecordReconnect()

	snap := m.Snapshot()
	if got := snap.Requests["/auth/customer/signin|POST|200"]; got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if got := snap.Errors["/auth/customer/refresh-token|POST|AUTH_FAILURE"]; got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
	if got := snap.ChannelFrames["out|customerPeriodicUpdates"]; got != 1 {
		t.Errorf("frames = %d, want 1", got)
	}
	if snap.Reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", snap.Reconnects)
	}
	if got := snap.LastLatencyMS["POST /auth/customer/signin"]; got != 5 {
		t.Errorf("last latency = %d, want 5", got)
	}

	// snapshot is a copy
	snap.Requests["/auth/customer/signin|POST|200"] = 99
	if m.Snapshot().Requests["/auth/customer/signin|POST|200"] != 2 {
		t.Error("Snapshot should not alias internal maps")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordFrame("in", "welcome")
	m.RecordReconnect()
	if snap := m.Snapshot(); snap.Reconnects != 0 {
		t.Error("nil metrics should produce an empty snapshot")
	}
}

func TestNewLogger_InvalidLevelFallsBack(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "loud"}, config.AppConfig{Name: "test", Role: "vendor"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Error("debug should be disabled when level falls back to info")
	}
}
