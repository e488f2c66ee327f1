package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Monitor) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMonitor_CountersAndGauges(t *testing.T) {
	m := NewMonitor("flyknight")
	m.SetOnlinePlayers(3)
	m.ObserveTick(2 * time.Millisecond)
	m.ObserveTick(3 * time.Millisecond)
	m.InputDropped("queue_full")
	m.InputDropped("queue_full")
	m.AddContestedPickups(0)
	m.AddContestedPickups(2)

	body := scrape(t, m)
	for _, want := range []string{
		"flyknight_online_players 3",
		"flyknight_ticks_total 2",
		`flyknight_inputs_dropped_total{reason="queue_full"} 2`,
		"flyknight_contested_pickups_total 2",
		"flyknight_tick_duration_seconds_count 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in /metrics", want)
		}
	}
}

func TestMonitor_SeparateRegistries(t *testing.T) {
	// Two monitors in one process must not collide on registration.
	NewMonitor("flyknight")
	NewMonitor("flyknight")
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("flyknight")
	m.IncProtocolErrors()
	srv := httptest.NewServer(m.Handler(func() any {
		return map[string]int{"players": 2}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "flyknight_protocol_errors_total 1") {
		t.Errorf("Expected the protocol error counter in /metrics, got:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	var status map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("Decode status failed: %v", err)
	}
	resp.Body.Close()
	if status["players"] != 2 {
		t.Errorf("Expected players 2, got %v", status)
	}

	resp, err = http.Get(srv.URL + "/debug/vars")
	if err != nil {
		t.Fatalf("GET /debug/vars failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "uptime") {
		t.Error("Expected uptime in /debug/vars")
	}
}
