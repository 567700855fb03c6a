// Package ws implements the server side of the quote stream: it accepts
// WebSocket connections, drives each one through the subscribe handshake and
// forwards outgoing messages to the transport.
//
// Per-connection state machine:
//
//	Accepted ──upgrade──▶ Ready ──subscribeTo──▶ Subscribed ──unsubscribeFrom──▶ Closed
//	    └──────────────── transport close / failure ──────────────────────────▶ Closed | Failed
//
// On Ready the server sends {"t":"connect.connected"}. A subscribe request
// registers the connection, then enqueues {"t":"connect.ack"} followed by one
// initial quote while still holding the connection's lock, so a concurrent
// broadcast tick can never put a quote ahead of the ack. Requests that do not
// fit the current state are logged and ignored. Undecodable messages are
// logged and dropped; the connection stays open.
//
// Each connection has one read goroutine and one write goroutine. Sends never
// block: messages go onto a bounded queue drained by the write goroutine, and a
// full queue drops the message. On close the connection leaves the registry
// before its transport is released.
//
// Manager.ServeHTTP is mounted at the configured ws_path. The upgrader accepts
// all origins. Apply CORS restrictions at the reverse proxy level.
package ws
