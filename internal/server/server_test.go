package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"detmon-go/internal/types"
)

func TestHandleStatus(t *testing.T) {
	srv := &Server{
		statusFn: func() map[string]any {
			return map[string]any{"session_id": "abc", "ticks_total": 12}
		},
	}
	srv.latest = types.ResultMessage{Type: "result", FrameIndex: 7, HottestRate: 5}
	srv.hasLatest = true

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if payload["session_id"] != "abc" {
		t.Fatalf("unexpected session_id: %v", payload["session_id"])
	}
	if payload["ws_clients"].(float64) != 0 {
		t.Fatalf("unexpected ws_clients: %v", payload["ws_clients"])
	}
	latest, ok := payload["latest_result"].(map[string]any)
	if !ok {
		t.Fatalf("missing latest_result: %v", payload)
	}
	if latest["frame_index"].(float64) != 7 {
		t.Fatalf("unexpected frame_index: %v", latest["frame_index"])
	}
}

func TestHandleStatusWithoutResults(t *testing.T) {
	srv := &Server{}

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := payload["latest_result"]; ok {
		t.Fatalf("latest_result present before any result was emitted")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := &Server{}
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}
