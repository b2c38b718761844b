package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/oscjson"
	"github.com/muurk/oscquery/internal/ports"
)

func newTestServer(t *testing.T, oscPort uint16, m *metrics.Metrics) *Server {
	t.Helper()

	srv, err := New(&Config{
		Port:     0,
		HostInfo: oscjson.NewHostInfo("TestApp", "127.0.0.1", oscPort),
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestNew_Defaults(t *testing.T) {
	srv := newTestServer(t, 9000, nil)

	if srv.config.Host != DefaultHost {
		t.Errorf("Host = %s, want %s", srv.config.Host, DefaultHost)
	}
	if srv.config.Root == nil || srv.config.Root.Path() != "/" {
		t.Errorf("Root = %v, want default root", srv.config.Root)
	}
}

func TestNew_RejectsNonRootTree(t *testing.T) {
	_, err := New(&Config{Root: oscjson.NewContainer("/avatar", oscjson.AccessWriteOnly)})
	if err == nil {
		t.Error("New() should reject a tree not rooted at /")
	}
}

func TestServeHTTP(t *testing.T) {
	srv := newTestServer(t, 9000, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "host info",
			method:     http.MethodGet,
			target:     "/?HOST_INFO",
			wantStatus: http.StatusOK,
			wantBody:   `{"NAME":"TestApp","OSC_PORT":9000,"OSC_IP":"127.0.0.1","OSC_TRANSPORT":"UDP","EXTENSIONS":{"ACCESS":true,"CLIPMODE":true,"RANGE":true,"TYPE":true,"VALUE":true}}`,
		},
		{
			name:       "marker anywhere in query",
			method:     http.MethodGet,
			target:     "/?foo=1&HOST_INFO",
			wantStatus: http.StatusOK,
			wantBody:   `"OSC_PORT":9000`,
		},
		{
			name:       "root tree",
			method:     http.MethodGet,
			target:     "/",
			wantStatus: http.StatusOK,
			wantBody:   `{"FULL_PATH":"/","ACCESS":0,"CONTENTS":{"avatar":{"FULL_PATH":"/avatar","ACCESS":2,"CONTENTS":{}}}}`,
		},
		{
			name:       "sub path",
			method:     http.MethodGet,
			target:     "/avatar",
			wantStatus: http.StatusOK,
			wantBody:   `{"FULL_PATH":"/avatar","ACCESS":2,"CONTENTS":{}}`,
		},
		{
			name:       "unknown path",
			method:     http.MethodGet,
			target:     "/avatar/parameters",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "post rejected",
			method:     http.MethodPost,
			target:     "/",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
				t.Errorf("Cache-Control = %q", cc)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestServeHTTP_MethodNotAllowedHeader(t *testing.T) {
	srv := newTestServer(t, 9000, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/?HOST_INFO", nil))

	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Errorf("Allow = %q, want GET", allow)
	}
}

func TestServeHTTP_Metrics(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(t, 9000, m)

	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?HOST_INFO", nil))
	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("host_info", "200")); got != 1 {
		t.Errorf("host_info 200 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("namespace", "404")); got != 1 {
		t.Errorf("namespace 404 = %v, want 1", got)
	}
}

// HOST_INFO and the tree agree on the port the server was built with
func TestHostInfoConsistency(t *testing.T) {
	for _, oscPort := range []uint16{1, 9000, 53211, 65535} {
		srv := newTestServer(t, oscPort, nil)

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?HOST_INFO", nil))

		info, err := oscjson.DecodeHostInfo(rec.Body.Bytes())
		if err != nil {
			t.Fatalf("DecodeHostInfo() error = %v", err)
		}
		if info.OSCPort != oscPort {
			t.Errorf("OSC_PORT = %d, want %d", info.OSCPort, oscPort)
		}
	}
}

func TestStartShutdown(t *testing.T) {
	port, err := ports.FreeTCPPort(netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatalf("FreeTCPPort() error = %v", err)
	}

	srv, err := New(&Config{
		Port:     port,
		HostInfo: oscjson.NewHostInfo("TestApp", "127.0.0.1", 9000),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// second Start is a no-op
	if err := srv.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/?HOST_INFO")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var info map[string]any
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("response is not JSON: %s", body)
	}
	if info["NAME"] != "TestApp" {
		t.Errorf("NAME = %v, want TestApp", info["NAME"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	srv := newTestServer(t, 9000, nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
