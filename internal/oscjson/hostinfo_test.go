package oscjson

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewHostInfo_JSON(t *testing.T) {
	data, err := json.Marshal(NewHostInfo("HelloWorld", "127.0.0.1", 9123))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"NAME":"HelloWorld","OSC_PORT":9123,"OSC_IP":"127.0.0.1","OSC_TRANSPORT":"UDP",` +
		`"EXTENSIONS":{"ACCESS":true,"CLIPMODE":true,"RANGE":true,"TYPE":true,"VALUE":true}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s\nwant %s", data, want)
	}
}

func TestDecodeHostInfo(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantErr  error
		wantPort uint16
		wantIP   string
	}{
		{
			name:     "vrchat host info",
			doc:      `{"NAME":"VRChat-Client-1","OSC_PORT":9000,"OSC_IP":"10.0.0.5","OSC_TRANSPORT":"UDP"}`,
			wantPort: 9000,
			wantIP:   "10.0.0.5",
		},
		{
			name:    "null port",
			doc:     `{"NAME":"x","OSC_PORT":null,"OSC_IP":"10.0.0.5"}`,
			wantErr: ErrMissingOSCPort,
		},
		{
			name:    "missing port",
			doc:     `{"NAME":"x","OSC_IP":"10.0.0.5"}`,
			wantErr: ErrMissingOSCPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := DecodeHostInfo([]byte(tt.doc))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeHostInfo() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeHostInfo() error = %v", err)
			}
			if info.OSCPort != tt.wantPort {
				t.Errorf("OSCPort = %d, want %d", info.OSCPort, tt.wantPort)
			}
			if info.OSCIP != tt.wantIP {
				t.Errorf("OSCIP = %q, want %q", info.OSCIP, tt.wantIP)
			}
		})
	}
}

func TestDecodeHostInfo_Malformed(t *testing.T) {
	if _, err := DecodeHostInfo([]byte(`<html>`)); err == nil {
		t.Error("DecodeHostInfo() should fail on non-JSON")
	}
	if _, err := DecodeHostInfo([]byte(`{"OSC_PORT":70000}`)); err == nil {
		t.Error("DecodeHostInfo() should fail on an out-of-range port")
	}
}
