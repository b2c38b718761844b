package peerclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/muurk/oscquery/internal/metrics"
	"github.com/muurk/oscquery/internal/oscjson"
)

const hostInfoResponse = `{"NAME":"VRChat-Client-1","OSC_PORT":9000,"OSC_IP":"10.0.0.5","OSC_TRANSPORT":"UDP","EXTENSIONS":{"ACCESS":true,"VALUE":true}}`

const treeResponse = `{
  "FULL_PATH": "/",
  "ACCESS": 0,
  "CONTENTS": {
    "avatar": {
      "FULL_PATH": "/avatar",
      "ACCESS": 2,
      "CONTENTS": {
        "change": {"FULL_PATH": "/avatar/change", "ACCESS": 3, "TYPE": "s", "VALUE": ["avtr_c38a1615"]},
        "parameters": {
          "FULL_PATH": "/avatar/parameters",
          "ACCESS": 2,
          "CONTENTS": {
            "MuteSelf": {"FULL_PATH": "/avatar/parameters/MuteSelf", "ACCESS": 3, "TYPE": "T", "VALUE": [true]},
            "Voice": {"FULL_PATH": "/avatar/parameters/Voice", "ACCESS": 1, "TYPE": "f", "VALUE": [0.25]},
            "Tracking": {
              "FULL_PATH": "/avatar/parameters/Tracking",
              "ACCESS": 2,
              "CONTENTS": {
                "Eye": {"FULL_PATH": "/avatar/parameters/Tracking/Eye", "ACCESS": 3, "TYPE": "i"}
              }
            }
          }
        }
      }
    }
  }
}`

// newPeer starts a fake OSCQuery peer answering HOST_INFO and the root tree
func newPeer(t *testing.T, hostInfo, tree string) (netip.AddrPort, *[]string) {
	t.Helper()

	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.RawQuery, "HOST_INFO") {
			_, _ = w.Write([]byte(hostInfo))
			return
		}
		_, _ = w.Write([]byte(tree))
	}))
	t.Cleanup(srv.Close)

	return netip.MustParseAddrPort(strings.TrimPrefix(srv.URL, "http://")), &requests
}

func TestNew(t *testing.T) {
	client := New(5*time.Second, nil)

	if client.HTTPClient == nil {
		t.Fatal("HTTPClient should not be nil")
	}
	if client.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.HTTPClient.Timeout)
	}
}

func TestURLs(t *testing.T) {
	peer := netip.MustParseAddrPort("10.0.0.5:9001")

	if got := HostInfoURL(peer); got != "http://10.0.0.5:9001/?HOST_INFO" {
		t.Errorf("HostInfoURL() = %s", got)
	}
	if got := NamespaceURL(peer); got != "http://10.0.0.5:9001/" {
		t.Errorf("NamespaceURL() = %s", got)
	}
}

func TestFetchOSCEndpoint(t *testing.T) {
	peer, requests := newPeer(t, hostInfoResponse, treeResponse)
	client := New(DefaultTimeout, nil)

	endpoint, err := client.FetchOSCEndpoint(context.Background(), peer)
	if err != nil {
		t.Fatalf("FetchOSCEndpoint() error = %v", err)
	}

	want := netip.MustParseAddrPort("10.0.0.5:9000")
	if endpoint != want {
		t.Errorf("endpoint = %v, want %v", endpoint, want)
	}
	if len(*requests) != 1 || (*requests)[0] != "/?HOST_INFO" {
		t.Errorf("requests = %v, want [/?HOST_INFO]", *requests)
	}
}

func TestFetchHostInfo_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantShape bool
		wantParse bool
	}{
		{
			name:      "null port",
			body:      `{"NAME":"x","OSC_PORT":null,"OSC_IP":"10.0.0.5"}`,
			wantShape: true,
		},
		{
			name:      "missing port",
			body:      `{"NAME":"x"}`,
			wantShape: true,
		},
		{
			name:      "malformed",
			body:      `{"NAME":`,
			wantParse: true,
		},
		{
			name:      "port out of range",
			body:      `{"OSC_PORT":70000}`,
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, _ := newPeer(t, tt.body, treeResponse)
			m := metrics.New()
			client := New(DefaultTimeout, m)

			info, err := client.FetchHostInfo(context.Background(), peer)
			if err == nil {
				t.Fatalf("FetchHostInfo() = %+v, want error", info)
			}
			if IsShapeError(err) != tt.wantShape {
				t.Errorf("IsShapeError() = %v, want %v (err: %v)", IsShapeError(err), tt.wantShape, err)
			}
			if IsParseError(err) != tt.wantParse {
				t.Errorf("IsParseError() = %v, want %v (err: %v)", IsParseError(err), tt.wantParse, err)
			}
			if IsTransportError(err) {
				t.Error("a bad document is not a transport error")
			}

			failures := testutil.ToFloat64(m.PeerFetchFailures.WithLabelValues(DocumentHostInfo, err.(*PeerError).Type.String()))
			if failures != 1 {
				t.Errorf("failure counter = %v, want 1", failures)
			}
		})
	}
}

func TestOSCEndpoint_Fallback(t *testing.T) {
	fetched := netip.MustParseAddr("192.168.1.20")

	tests := []struct {
		oscIP string
		want  string
	}{
		{"10.0.0.5", "10.0.0.5:9000"},
		{"", "192.168.1.20:9000"},
		{"not-an-ip", "192.168.1.20:9000"},
		{"0.0.0.0", "192.168.1.20:9000"},
		{"::ffff:10.0.0.7", "10.0.0.7:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.oscIP, func(t *testing.T) {
			info := hostInfo(tt.oscIP, 9000)
			if got := OSCEndpoint(info, fetched); got.String() != tt.want {
				t.Errorf("OSCEndpoint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetchSnapshot(t *testing.T) {
	peer, requests := newPeer(t, hostInfoResponse, treeResponse)
	client := New(DefaultTimeout, nil)

	snapshot, err := client.FetchSnapshot(context.Background(), peer)
	if err != nil {
		t.Fatalf("FetchSnapshot() error = %v", err)
	}

	if snapshot.Peer != peer {
		t.Errorf("Peer = %v, want %v", snapshot.Peer, peer)
	}
	if snapshot.AvatarID != "avtr_c38a1615" {
		t.Errorf("AvatarID = %q, want avtr_c38a1615", snapshot.AvatarID)
	}
	if snapshot.Parameters["/avatar/parameters/MuteSelf"] != true {
		t.Errorf("MuteSelf = %v, want true", snapshot.Parameters["/avatar/parameters/MuteSelf"])
	}
	if len(snapshot.Parameters) != 3 {
		t.Errorf("got %d parameters, want 3: %v", len(snapshot.Parameters), snapshot.Parameters)
	}
	if (*requests)[0] != "/" {
		t.Errorf("request = %s, want /", (*requests)[0])
	}
}

func TestFetchSnapshot_NoParameters(t *testing.T) {
	peer, _ := newPeer(t, hostInfoResponse, `{"FULL_PATH":"/","CONTENTS":{"avatar":{"CONTENTS":{}}}}`)
	client := New(DefaultTimeout, nil)

	_, err := client.FetchSnapshot(context.Background(), peer)
	if !IsShapeError(err) {
		t.Errorf("FetchSnapshot() error = %v, want shape error", err)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	peer := netip.MustParseAddrPort(strings.TrimPrefix(srv.URL, "http://"))
	client := New(DefaultTimeout, nil)

	_, err := client.FetchSnapshot(context.Background(), peer)
	if !IsHTTPError(err) {
		t.Fatalf("error = %v, want HTTP error", err)
	}
	if !IsTransportError(err) {
		t.Error("HTTP error should count as a transport error")
	}
	if err.(*PeerError).StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", err.(*PeerError).StatusCode)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	peer := netip.MustParseAddrPort(l.Addr().String())
	_ = l.Close()

	client := New(DefaultTimeout, nil)
	_, err = client.FetchHostInfo(context.Background(), peer)
	if !IsNetworkError(err) {
		t.Fatalf("error = %v, want network error", err)
	}
	if err.(*PeerError).NetworkSubtype != NetworkErrorConnectionRefused {
		t.Errorf("NetworkSubtype = %v, want connection refused", err.(*PeerError).NetworkSubtype)
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	peer := netip.MustParseAddrPort(strings.TrimPrefix(srv.URL, "http://"))
	client := New(50*time.Millisecond, nil)

	_, err := client.FetchHostInfo(context.Background(), peer)
	if !IsNetworkError(err) {
		t.Fatalf("error = %v, want network error", err)
	}
	if err.(*PeerError).NetworkSubtype != NetworkErrorTimeout {
		t.Errorf("NetworkSubtype = %v, want timeout", err.(*PeerError).NetworkSubtype)
	}
}

func hostInfo(oscIP string, port uint16) *oscjson.HostInfo {
	info := oscjson.NewHostInfo("peer", oscIP, port)
	return &info
}
