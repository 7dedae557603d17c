// Package ws provides live previews over WebSocket.
//
// Every connection gets a session ID and its own preview host. Edits are
// debounced by the host; every host transition is pushed to the client, and
// views that pile up behind a slow client are coalesced to the newest one.
//
// Message Types (Client → Server):
//   - source: {"type":"source","code":"..."} replaces the previewed source
//   - remount: re-runs the current source immediately
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - session: first frame, carries the session ID
//   - view: a host view (idle, loading, mounted or failed)
//   - pong: reply to ping
//   - error: a message could not be handled
//
// Example Usage:
//
//	handler := ws.NewHandler(engine, ws.Options{Host: host.DefaultOptions()}, nil, metrics, logger)
//	router.GET("/api/live", handler.HandleConnection)
package ws
