package discovery

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
	"golang.org/x/net/ipv4"
)

// mdnsPort is the well-known mDNS port
const mdnsPort = 5353

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: mdnsPort}

// PacketConn is the multicast socket discovery receives answers on and sends
// queries through.
type PacketConn interface {
	// ReadMessage blocks for the next datagram
	ReadMessage(b []byte) (int, error)
	// JoinGroup joins the mDNS group on ifi
	JoinGroup(ifi *net.Interface) error
	// WriteQuery multicasts b out of ifi
	WriteQuery(b []byte, ifi *net.Interface) error
	Close() error
}

// multicastConn is the IPv4 mDNS socket
type multicastConn struct {
	pc *ipv4.PacketConn
}

// ListenMulticast binds 224.0.0.251:5353. Group membership is added per
// interface with JoinGroup as interfaces are discovered.
func ListenMulticast() (PacketConn, error) {
	udp, err := net.ListenMulticastUDP("udp4", nil, mdnsGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to bind mDNS socket: %w", err)
	}

	pc := ipv4.NewPacketConn(udp)
	// loopback stays on so peers on this host hear our queries
	_ = pc.SetMulticastTTL(255)

	return &multicastConn{pc: pc}, nil
}

func (c *multicastConn) ReadMessage(b []byte) (int, error) {
	n, _, _, err := c.pc.ReadFrom(b)
	return n, err
}

func (c *multicastConn) JoinGroup(ifi *net.Interface) error {
	return c.pc.JoinGroup(ifi, &net.UDPAddr{IP: mdnsGroup.IP})
}

func (c *multicastConn) WriteQuery(b []byte, ifi *net.Interface) error {
	if err := c.pc.SetMulticastInterface(ifi); err != nil {
		return fmt.Errorf("failed to select interface %s: %w", ifi.Name, err)
	}
	_, err := c.pc.WriteTo(b, nil, mdnsGroup)
	return err
}

func (c *multicastConn) Close() error {
	return c.pc.Close()
}

// serviceQuery builds one PTR question per OSCQuery service type
func serviceQuery() ([]byte, error) {
	msg := new(dns.Msg)
	msg.Id = 0
	msg.RecursionDesired = false
	msg.Question = []dns.Question{
		{Name: ServiceTypeOSCJSON + "." + ServiceDomain, Qtype: dns.TypePTR, Qclass: dns.ClassINET},
		{Name: ServiceTypeOSC + "." + ServiceDomain, Qtype: dns.TypePTR, Qclass: dns.ClassINET},
	}
	return msg.Pack()
}
