// Package protocol defines the quotestream wire format shared by the server and
// the client.
//
// Server-originated messages are JSON objects tagged by a "t" discriminator:
//
//	{"t":"connect.connected"}
//	{"t":"connect.ack","connectionId":0}
//	{"t":"connect.failed"}
//	{"t":"trading.quote","body":{"securityId":"100","currentPrice":"512"}}
//
// Client requests are untagged and recognised by key presence:
//
//	{"subscribeTo":"trading.product.100"}
//	{"unsubscribeFrom":0}
//
// Decode and DecodeRequest never panic on bad input. Every failure wraps either
// ErrUnknownMessageType or ErrMalformedPayload and can be inspected with errors.Is.
package protocol
