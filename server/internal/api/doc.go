// Package api implements the operational HTTP API for quotestream-server.
//
// New(...) returns an http.Handler that serves:
//
//	GET /api/v1/health       — broadcast state, subscriber and connection counts
//	GET /api/v1/subscribers  — identities currently in the registry
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
