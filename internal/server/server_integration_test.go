package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/reroller/internal/app"
	"github.com/ayusman/reroller/internal/store"
	"github.com/ayusman/reroller/internal/victory"
)

type stubController struct {
	mu     sync.Mutex
	status app.Status
}

func (c *stubController) Status() app.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *stubController) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Paused = paused
}

func TestAPI_HistoryWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	sess := &store.Session{Mode: store.ModeTarget, MinFiveStar: 3, Targets: []string{"hero"}}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i := 1; i <= 3; i++ {
		s.Attempts().Create(&store.Attempt{SessionID: sess.ID, Number: i, Required: 3, Success: i == 3})
	}

	ctl := &stubController{status: app.Status{Running: true, Mode: store.ModeTarget, SessionID: sess.ID, Attempts: 3}}
	ts := httptest.NewServer(New(Config{Store: s, Controller: ctl}))
	defer ts.Close()

	client := ts.Client()

	// 1. Session recorded as succeeded
	resp, err := client.Get(ts.URL + "/api/sessions/" + sess.ID)
	if err != nil {
		t.Fatalf("GET /api/sessions/{id} error = %v", err)
	}
	var got store.Session
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if !got.Succeeded || got.Attempts != 3 {
		t.Errorf("session = %+v", got)
	}

	// 2. Attempts of the latest session
	resp, _ = client.Get(ts.URL + "/api/attempts?limit=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/attempts status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var attempts struct {
		Attempts []store.Attempt `json:"attempts"`
	}
	json.NewDecoder(resp.Body).Decode(&attempts)
	resp.Body.Close()
	if len(attempts.Attempts) != 1 || !attempts.Attempts[0].Success {
		t.Errorf("attempts = %+v", attempts.Attempts)
	}

	// 3. Pause through the status endpoint
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/status", bytes.NewBufferString(`{"paused":true}`))
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !ctl.Status().Paused {
		t.Errorf("PUT /api/status status = %d, paused = %v", resp.StatusCode, ctl.Status().Paused)
	}

	// 4. Delete session
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+sess.ID, nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp, _ = client.Get(ts.URL + "/api/attempts?session=" + sess.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET attempts after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAPI_VerdictFeed(t *testing.T) {
	hub := NewVerdictHub()
	ts := httptest.NewServer(New(Config{Verdicts: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/verdicts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Registration happens in the handler goroutine
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(app.Event{
		Attempt: 12,
		Verdict: victory.Verdict{
			Success:       true,
			Message:       "SUCCESS: hero is 5* and there are 3 in total.",
			FiveStarCount: 3,
			Required:      3,
			TargetName:    "hero",
		},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev app.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Attempt != 12 || !ev.Verdict.Success || ev.Verdict.TargetName != "hero" {
		t.Errorf("event = %+v", ev)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_ListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(Config{}).ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
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
