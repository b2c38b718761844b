// Package discovery provides mDNS advertisement and peer discovery for OSCQuery.
//
// This package advertises two service records for the local host and listens
// for the records of other OSCQuery hosts on the local network:
//
//	<name>._oscjson._tcp.local.   HTTP introspection endpoint
//	<name>._osc._udp.local.       OSC receive endpoint
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Binds the IPv4 mDNS group 224.0.0.251:5353
//  2. Polls the interface list; every new multicast interface joins the group
//     and gets a PTR query for both service types
//  3. Unpacks every response and walks its SRV records (additional section
//     first, then answers), skipping _udp records
//  4. A TTL=0 record removes its key from the registry; a live record with an
//     unknown key is added
//  5. Newly added instances whose name starts with the target prefix are
//     queued for negotiation with the first A record of the message
//
// The receive loop never performs network I/O towards a peer. Negotiation
// happens on a small worker pool reading from a bounded queue. When the queue
// is full the peer is dropped and its key forgotten, so the next
// announcement retries it.
//
// # Usage Example
//
//	d, err := discovery.New(discovery.Config{
//	    ServiceName: "MyApp",
//	    ServiceIP:   netip.MustParseAddr("127.0.0.1"),
//	    HTTPPort:    httpPort,
//	    OSCPort:     oscPort,
//	    Handler: func(ctx context.Context, peer discovery.Peer) {
//	        fmt.Println("found", peer)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := d.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Peers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// Several Discovery instances may run in one process; each owns its registry,
// socket and queue.
package discovery
