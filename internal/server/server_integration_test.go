package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/store"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAPI_EventStream(t *testing.T) {
	hub := NewHub(nil)
	srv := New(Config{Events: hub})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s error = %v", url, err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	hub.Broadcast(gesture.NoAction, gesture.Idle, testTime)
	hub.Broadcast(gesture.Action{Kind: gesture.ClickLeft}, gesture.LeftClick, testTime)
	hub.Broadcast(gesture.Action{Kind: gesture.Scroll, DY: -4}, gesture.Scrolling, testTime.Add(time.Second))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got []map[string]interface{}
	for range 2 {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read error = %v", err)
		}
		var ev map[string]interface{}
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		got = append(got, ev)
	}

	first := got[0]["action"].(map[string]interface{})
	if first["kind"] != "left_click" {
		t.Errorf("first kind = %v, want left_click", first["kind"])
	}
	if got[0]["state"] != "left_click" {
		t.Errorf("first state = %v, want left_click", got[0]["state"])
	}
	if got[0]["timestamp"] != float64(testTime.UnixMilli()) {
		t.Errorf("first timestamp = %v", got[0]["timestamp"])
	}

	second := got[1]["action"].(map[string]interface{})
	if second["kind"] != "scroll" || second["dy"] != float64(-4) {
		t.Errorf("second action = %v, want scroll dy=-4", second)
	}

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestAPI_EventStreamClosedHub(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()

	ts := httptest.NewServer(New(Config{Events: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected closed connection")
	}
	if hub.Clients() != 0 {
		t.Errorf("clients = %d, want 0", hub.Clients())
	}
}

func TestAPI_JournalWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New error = %v", err)
	}
	defer s.Close()

	sess, err := s.Sessions().Start(testTime)
	if err != nil {
		t.Fatalf("Start error = %v", err)
	}
	for i, kind := range []string{"left_click", "swipe_right"} {
		a := &store.Action{SessionID: sess.ID, Kind: kind, State: "moving", CreatedAt: testTime.Add(time.Duration(i) * time.Second)}
		if err := s.Actions().Record(a); err != nil {
			t.Fatalf("Record error = %v", err)
		}
	}

	status := &fakeStatus{enabled: true, state: gesture.Moving, frames: 7}
	ts := httptest.NewServer(New(Config{Store: s, Status: status}))
	defer ts.Close()
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/api/actions?limit=1")
	if err != nil {
		t.Fatalf("GET /api/actions error = %v", err)
	}
	var listed struct {
		Actions []struct {
			SessionID string `json:"session_id"`
			Kind      string `json:"kind"`
		} `json:"actions"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/actions status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if len(listed.Actions) != 1 || listed.Actions[0].Kind != "swipe_right" || listed.Actions[0].SessionID != sess.ID {
		t.Fatalf("actions = %+v, want newest swipe_right", listed.Actions)
	}

	resp, err = client.Post(ts.URL+"/api/toggle", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/toggle error = %v", err)
	}
	resp.Body.Close()
	if status.Enabled() {
		t.Error("expected tracking paused after toggle")
	}

	resp, err = client.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	defer resp.Body.Close()

	var st struct {
		Enabled bool   `json:"enabled"`
		State   string `json:"state"`
		Frames  uint64 `json:"frames_processed"`
	}
	json.NewDecoder(resp.Body).Decode(&st)
	if st.Enabled || st.State != "moving" || st.Frames != 7 {
		t.Errorf("status = %+v", st)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
