package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/msrpctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func adminGet(t *testing.T, a *Admin, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	a.Router().ServeHTTP(rec, req)
	return rec
}

func TestAdminHealthAndMetrics(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	a := NewAdmin(AdminConfig{ID: "msrpctl-test"})

	rec := adminGet(t, a, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("cors origin=%q", got)
	}

	RecordFrameSent("queued", 10)
	rec = adminGet(t, a, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "msrpctl_frames_sent_total") {
		t.Fatalf("metrics status=%d body missing frame counter", rec.Code)
	}
}

func TestAdminReadyFollowsReadyCheck(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	ready := false
	a := NewAdmin(AdminConfig{ID: "msrpctl-test", Ready: func() bool { return ready }})

	if rec := adminGet(t, a, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready status=%d", rec.Code)
	}
	ready = true
	if rec := adminGet(t, a, "/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready status=%d", rec.Code)
	}
}

func TestAdminSessionSnapshot(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var snap any
	a := NewAdmin(AdminConfig{ID: "msrpctl-test", Session: func() (any, bool) {
		return snap, snap != nil
	}})

	if rec := adminGet(t, a, "/session"); rec.Code != http.StatusNotFound {
		t.Fatalf("no session status=%d", rec.Code)
	}
	snap = map[string]any{"from": "msrp://a:1/x;tcp", "established": true}
	rec := adminGet(t, a, "/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("session status=%d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["established"] != true || body["from"] != "msrp://a:1/x;tcp" {
		t.Fatalf("body=%v", body)
	}
}

func TestAdminSessionRequiresToken(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	a := NewAdmin(AdminConfig{ID: "msrpctl-test", Token: "s3cret", Session: func() (any, bool) {
		return map[string]any{"established": false}, true
	}})

	if rec := adminGet(t, a, "/session"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rec.Code)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	a.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorized status=%d", rec.Code)
	}
	if rec := adminGet(t, a, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health must stay open, status=%d", rec.Code)
	}
}
