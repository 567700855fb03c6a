// Package session implements the client side of the quote stream.
//
// A Session owns one outbound WebSocket connection. After Connect it waits for
// the server's greeting, subscribes to the configured product and then surfaces
// every quote price on Updates():
//
//	Disconnected ──Connect──▶ Connecting ──connected──▶ AwaitingHandshake ──ack──▶ Subscribed
//
// A connect.failed message, an undecodable message or a transport failure
// surfaces an Update with Err set and moves the session back to Disconnected.
// Only a transport failure or Close ends the receive loop; Updates() is closed
// when it does. Close is terminal and idempotent.
//
// Sessions are independent values. Any number may run in one process.
package session
