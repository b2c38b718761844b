// Package feed streams OSCQuery events to external watchers over websocket.
//
// A Hub is an http.Handler. Every text frame is a Message whose Type is
// peer-found or parameters-updated and whose Data is a PeerFoundData or a
// ParametersData. A watcher that connects late first receives the latest
// message of each type. Watchers that fall behind are disconnected rather
// than slowing down the publisher.
//
//	hub := feed.NewHub(0)
//	http.Handle("/events", hub)
//	srv.OnParametersUpdated(func(ctx context.Context, s *oscquery.Snapshot) error {
//	    return hub.PublishSnapshot(s)
//	})
package feed
