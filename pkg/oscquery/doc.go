// Package oscquery finds an OSCQuery peer on the local network and keeps a
// flat view of its avatar parameters.
//
// A Server advertises two mDNS records for the application, answers the
// OSCQuery HTTP documents for them, and listens for peers whose instance name
// starts with the target prefix (VRChat-Client- by default). For every new
// peer it reads HOST_INFO, emits a PeerFound carrying the peer's OSC
// endpoint, and then reads the peer's namespace to emit a first Snapshot.
//
//	srv, err := oscquery.New(oscquery.Config{ServiceName: "MyApp"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Dispose()
//
//	srv.OnPeerFound(func(ctx context.Context, peer oscquery.PeerFound) error {
//	    // open an OSC transport: receive on srv.OSCReceivePort(), send to peer.OSC
//	    return nil
//	})
//	srv.OnParametersUpdated(func(ctx context.Context, s *oscquery.Snapshot) error {
//	    fmt.Println(s.AvatarID, len(s.Parameters))
//	    return nil
//	})
//
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// Call RefreshParameters whenever the peer signals a change, for example on
// an /avatar/change message. Subscribers run concurrently with each other; a
// failing subscriber is logged and does not affect the others. Emissions of
// one event are serialized, so a parameters-updated subscriber must not call
// RefreshParameters synchronously.
//
// Logs go to Config.Logger; without one the server is silent. Dispose may be
// called from anywhere, including a subscriber: running negotiations are
// cancelled and left to finish on their own.
//
// At most one peer is current. A newly negotiated peer replaces it; a
// transport failure while reading the namespace clears it. A goodbye record
// alone does not.
package oscquery
