package oscjson

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Transport is the OSC transport a host receives on.
type Transport string

const (
	// TransportUDP is the only transport this package advertises
	TransportUDP Transport = "UDP"
)

// ErrMissingOSCPort is returned when a HOST_INFO document has no OSC_PORT.
var ErrMissingOSCPort = errors.New("host info has no OSC_PORT")

// Extensions lists the optional OSCQuery attributes a host understands.
type Extensions struct {
	Access   bool `json:"ACCESS"`
	ClipMode bool `json:"CLIPMODE"`
	Range    bool `json:"RANGE"`
	Type     bool `json:"TYPE"`
	Value    bool `json:"VALUE"`
}

// HostInfo is the HOST_INFO document served at /?HOST_INFO.
type HostInfo struct {
	Name         string     `json:"NAME"`
	OSCPort      uint16     `json:"OSC_PORT"`
	OSCIP        string     `json:"OSC_IP"`
	OSCTransport Transport  `json:"OSC_TRANSPORT"`
	Extensions   Extensions `json:"EXTENSIONS"`
}

// NewHostInfo builds the descriptor this library advertises for itself.
func NewHostInfo(name string, oscIP string, oscPort uint16) HostInfo {
	return HostInfo{
		Name:         name,
		OSCPort:      oscPort,
		OSCIP:        oscIP,
		OSCTransport: TransportUDP,
		Extensions: Extensions{
			Access:   true,
			ClipMode: true,
			Range:    true,
			Type:     true,
			Value:    true,
		},
	}
}

// hostInfoWire mirrors HostInfo with a nullable port so a missing OSC_PORT
// can be told apart from port 0.
type hostInfoWire struct {
	Name         string     `json:"NAME"`
	OSCPort      *uint16    `json:"OSC_PORT"`
	OSCIP        string     `json:"OSC_IP"`
	OSCTransport Transport  `json:"OSC_TRANSPORT"`
	Extensions   Extensions `json:"EXTENSIONS"`
}

// DecodeHostInfo parses a peer's HOST_INFO document. A document without an
// OSC_PORT is rejected with ErrMissingOSCPort.
func DecodeHostInfo(data []byte) (*HostInfo, error) {
	var wire hostInfoWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse host info: %w", err)
	}

	if wire.OSCPort == nil {
		return nil, ErrMissingOSCPort
	}

	return &HostInfo{
		Name:         wire.Name,
		OSCPort:      *wire.OSCPort,
		OSCIP:        wire.OSCIP,
		OSCTransport: wire.OSCTransport,
		Extensions:   wire.Extensions,
	}, nil
}
