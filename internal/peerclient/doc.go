// Package peerclient fetches OSCQuery documents from a discovered peer.
//
// A negotiation has two steps. FetchOSCEndpoint reads the peer's HOST_INFO
// document to learn where it receives OSC. FetchSnapshot reads the namespace
// tree and flattens everything below /avatar/parameters into a map keyed by
// full path, together with the active avatar id from /avatar/change.
//
// # Errors
//
// Every failure is a *PeerError. Its Type tells transport failures
// (ErrTypeNetwork, ErrTypeHTTP) apart from bad documents (ErrTypeParse,
// ErrTypeShape):
//
//	snapshot, err := client.FetchSnapshot(ctx, peer)
//	if peerclient.IsTransportError(err) {
//	    // peer went away
//	}
//
// Callers treat any error as "no update", never as "parameters cleared".
package peerclient
