// Package server implements the OSCQuery HTTP responder.
//
// The responder answers introspection requests from peers that discovered
// this host over mDNS. It serves exactly two documents: the host descriptor
// and the namespace tree.
//
// # Request Shapes
//
// A request whose raw target contains HOST_INFO anywhere gets the host
// descriptor:
//
//	GET /?HOST_INFO
//
//	{"NAME":"MyApp","OSC_PORT":53211,"OSC_IP":"127.0.0.1","OSC_TRANSPORT":"UDP",
//	 "EXTENSIONS":{"ACCESS":true,"CLIPMODE":true,"RANGE":true,"TYPE":true,"VALUE":true}}
//
// Every other GET is an address query. The root returns the full tree, a
// sub-path returns the node at that address, and unknown addresses are 404.
// Methods other than GET are rejected with 405.
//
// All answers carry Content-Type application/json; charset=utf-8 and
// Cache-Control no-cache.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Host:     "127.0.0.1",
//	    Port:     httpPort,
//	    HostInfo: oscjson.NewHostInfo("MyApp", "127.0.0.1", oscPort),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start returns once the listener is bound
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Shutdown(context.Background())
//
// # Thread Safety
//
// The served documents are fixed at construction. Requests are handled
// concurrently, one goroutine each, by net/http.
package server
