// Package logging provides structured logging for the OSCQuery engine.
//
// This package wraps a zap logger with convenience functions used throughout
// discovery, the HTTP responder and the peer client. Logging is silent until
// Initialize is called with a level or OSCQUERY_LOG_LEVEL is set, so the
// library never writes to stdout behind an embedding application's back.
//
// # Log Levels
//
//   - Debug: mDNS record traces, dedup decisions, outbound fetch URLs
//   - Info: lifecycle (start, advertise, dispose), peer found
//   - Warn: malformed peer documents, dropped negotiations
//   - Error: transport failures, subscriber failures
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use, including Initialize
// and SetLogger. Library components also take an optional per-instance
// *zap.Logger; OrGlobal falls back to the package logger when none is given.
package logging
