package ports

import (
	"net"
	"net/netip"
	"testing"
)

var loopback = netip.MustParseAddr("127.0.0.1")

func TestFreeTCPPort(t *testing.T) {
	port, err := FreeTCPPort(loopback)
	if err != nil {
		t.Fatalf("FreeTCPPort() error = %v", err)
	}
	if port == 0 {
		t.Fatal("FreeTCPPort() returned port 0")
	}

	// The port was released and can be bound again
	l, err := net.ListenTCP("tcp4", net.TCPAddrFromAddrPort(netip.AddrPortFrom(loopback, port)))
	if err != nil {
		t.Fatalf("port %d not reusable: %v", port, err)
	}
	_ = l.Close()
}

func TestFreeUDPPort(t *testing.T) {
	port, err := FreeUDPPort(loopback)
	if err != nil {
		t.Fatalf("FreeUDPPort() error = %v", err)
	}
	if port == 0 {
		t.Fatal("FreeUDPPort() returned port 0")
	}

	c, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(loopback, port)))
	if err != nil {
		t.Fatalf("port %d not reusable: %v", port, err)
	}
	_ = c.Close()
}

func TestFreeTCPPort_InvalidAddress(t *testing.T) {
	// TEST-NET-1 is never assigned to a local interface
	if _, err := FreeTCPPort(netip.MustParseAddr("192.0.2.1")); err == nil {
		t.Error("FreeTCPPort() on a non-local address should fail")
	}
}
