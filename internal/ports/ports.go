// Package ports asks the operating system for free ephemeral ports.
package ports

import (
	"fmt"
	"net"
	"net/netip"
)

// FreeTCPPort binds a TCP listener on ip:0, reads the assigned port and
// closes the listener.
func FreeTCPPort(ip netip.Addr) (uint16, error) {
	l, err := net.ListenTCP("tcp4", net.TCPAddrFromAddrPort(netip.AddrPortFrom(ip, 0)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate TCP port on %s: %w", ip, err)
	}
	defer func() { _ = l.Close() }()

	return uint16(l.Addr().(*net.TCPAddr).Port), nil
}

// FreeUDPPort binds a UDP socket on ip:0, reads the assigned port and closes
// the socket.
func FreeUDPPort(ip netip.Addr) (uint16, error) {
	c, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(netip.AddrPortFrom(ip, 0)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate UDP port on %s: %w", ip, err)
	}
	defer func() { _ = c.Close() }()

	return uint16(c.LocalAddr().(*net.UDPAddr).Port), nil
}
