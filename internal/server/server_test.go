package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mac_health/internal/collector"
	"mac_health/internal/commands"
	"mac_health/internal/errs"
	"mac_health/internal/scheduler"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type fakeDispatcher struct {
	lastName string
	lastArgs commands.Args
}

func (f *fakeDispatcher) Call(_ context.Context, name string, args commands.Args) (any, error) {
	f.lastName = name
	f.lastArgs = args
	switch name {
	case "get_system_uptime":
		return uint64(42), nil
	case "open_activity_monitor":
		return nil, nil
	case "get_battery_info":
		return nil, errs.New(errs.EmptyOutput, "battery", "No battery found (desktop Mac?)")
	case "force_quit_process":
		if args.PID == nil {
			return nil, errs.New(errs.InvalidArgument, "force_quit_process", "pid is required")
		}
		return map[string]interface{}{"success": true, "message": "Process terminated"}, nil
	default:
		return nil, errs.New(errs.NotFound, "call", "Unknown command: "+name)
	}
}

func (f *fakeDispatcher) Commands() []commands.Info {
	return []commands.Info{{Name: "get_system_uptime"}, {Name: "open_activity_monitor", Async: true}}
}

type fakeFeed struct {
	mu      sync.Mutex
	current *scheduler.StatusEvent
	subs    []chan scheduler.StatusEvent
}

func (f *fakeFeed) Subscribe(buffer int) (<-chan scheduler.StatusEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan scheduler.StatusEvent, buffer)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeFeed) Current() (scheduler.StatusEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return scheduler.StatusEvent{}, false
	}
	return *f.current, true
}

func (f *fakeFeed) GetStats() map[string]interface{} {
	return map[string]interface{}{"running": true}
}

func (f *fakeFeed) publish(event scheduler.StatusEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- event
	}
}

func (f *fakeFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCallCommand(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"value", "get_system_uptime", "", http.StatusOK, "42"},
		{"no result", "open_activity_monitor", "", http.StatusNoContent, ""},
		{"empty output", "get_battery_info", "", http.StatusNotFound, `{"error":"No battery found (desktop Mac?)"}`},
		{"unknown", "reboot", "", http.StatusNotFound, `{"error":"Unknown command: reboot"}`},
		{"missing argument", "force_quit_process", "{}", http.StatusBadRequest, `{"error":"pid is required"}`},
		{"with argument", "force_quit_process", `{"pid": 123}`, http.StatusOK, `{"message":"Process terminated","success":true}`},
		{"bad body", "force_quit_process", `{"pid": -1}`, http.StatusBadRequest, `{"error":"Invalid command arguments"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			s := New(":0", "", d, &fakeFeed{}, zap.NewNop())

			rec := doRequest(t, s.Handler(), http.MethodPost, "/api/commands/"+tt.command, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestCallCommandPassesArgs(t *testing.T) {
	d := &fakeDispatcher{}
	s := New(":0", "", d, &fakeFeed{}, zap.NewNop())

	doRequest(t, s.Handler(), http.MethodPost, "/api/commands/force_quit_process", `{"pid": 99, "count": 5, "panel": "privacy"}`, nil)

	if d.lastName != "force_quit_process" {
		t.Errorf("command = %q", d.lastName)
	}
	if d.lastArgs.PID == nil || *d.lastArgs.PID != 99 {
		t.Errorf("pid = %v", d.lastArgs.PID)
	}
	if d.lastArgs.Count == nil || *d.lastArgs.Count != 5 || d.lastArgs.Panel != "privacy" {
		t.Errorf("args = %+v", d.lastArgs)
	}
}

func TestListCommandsAndHealth(t *testing.T) {
	s := New(":0", "", &fakeDispatcher{}, &fakeFeed{}, zap.NewNop())

	rec := doRequest(t, s.Handler(), http.MethodGet, "/api/commands", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var infos []commands.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || !infos[1].Async {
		t.Errorf("commands = %+v", infos)
	}

	rec = doRequest(t, s.Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	s := New(":0", "secret", &fakeDispatcher{}, &fakeFeed{}, zap.NewNop())

	tests := []struct {
		name       string
		target     string
		header     map[string]string
		wantStatus int
	}{
		{"missing token", "/api/commands", nil, http.StatusUnauthorized},
		{"wrong token", "/api/commands", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"bearer token", "/api/commands", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"query token", "/api/commands?token=secret", nil, http.StatusOK},
		{"health is public", "/healthz", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s.Handler(), http.MethodGet, tt.target, "", tt.header)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCurrentStatus(t *testing.T) {
	feed := &fakeFeed{}
	s := New(":0", "", &fakeDispatcher{}, feed, zap.NewNop())

	rec := doRequest(t, s.Handler(), http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before evaluation = %d", rec.Code)
	}

	feed.current = &scheduler.StatusEvent{ID: "evt-1", Status: collector.StatusCritical}
	rec = doRequest(t, s.Handler(), http.MethodGet, "/api/status", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"critical"`) {
		t.Errorf("status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusStream(t *testing.T) {
	feed := &fakeFeed{current: &scheduler.StatusEvent{ID: "evt-1", Status: collector.StatusExcellent}}
	s := New(":0", "", &fakeDispatcher{}, feed, zap.NewNop())

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first scheduler.StatusEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.ID != "evt-1" || first.Status != collector.StatusExcellent {
		t.Errorf("first event = %+v", first)
	}

	deadline := time.Now().Add(5 * time.Second)
	for feed.subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	feed.publish(scheduler.StatusEvent{ID: "evt-2", Status: collector.StatusCritical, Previous: collector.StatusExcellent})

	var next scheduler.StatusEvent
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if next.ID != "evt-2" || next.Previous != collector.StatusExcellent {
		t.Errorf("next event = %+v", next)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.NotFound, http.StatusNotFound},
		{errs.EmptyOutput, http.StatusNotFound},
		{errs.InvalidArgument, http.StatusBadRequest},
		{errs.PermissionDenied, http.StatusForbidden},
		{errs.Cancelled, http.StatusServiceUnavailable},
		{errs.SpawnFailed, http.StatusInternalServerError},
		{errs.Failed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := StatusFor(errs.New(tt.kind, "op", "msg")); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}
