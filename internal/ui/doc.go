// Package ui provides terminal output for the oscquery-monitor CLI.
//
// Two kinds of output live here. Header, Result and Printer render "run once
// and exit" output with Lipgloss: the probe command and the monitor when
// stdout is not a terminal. MonitorModel is an interactive Bubble Tea screen
// showing the negotiated peer and its latest parameters.
//
// # Monitor
//
// The model is fed by the OSCQuery event subscribers through Monitor.Send:
//
//	mon := ui.NewMonitor(ctx, ui.NewMonitorModel(ui.MonitorConfig{
//	    ServiceName: "MyApp",
//	    HTTPPort:    srv.HTTPPort(),
//	    OSCPort:     srv.OSCReceivePort(),
//	    Refresh:     srv.RefreshParameters,
//	}))
//	srv.OnPeerFound(func(ctx context.Context, p oscquery.PeerFound) error {
//	    mon.Send(ui.PeerFoundMsg{Peer: p})
//	    return nil
//	})
//	err := mon.Run()
//
// Keys: r refreshes the parameters, q quits.
//
// # Logging Integration
//
// zap output would tear the rendered screen. The monitor command sends logs to
// a file while the screen is shown; otherwise OSCQUERY_LOG_LEVEL controls
// logging as usual.
package ui
