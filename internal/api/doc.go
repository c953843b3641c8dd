// Package api implements the HTTP REST API and WebSocket server for showctl.
//
// This package provides:
//   - REST endpoints to list, start and stop scenes and trigger their cues
//   - action history and operator audit queries
//   - a WebSocket hub pushing scene state changes and action settlements
//   - JWT authentication with ticket-based WebSocket auth
//
// # Architecture
//
// The server is a thin shell over automation.Manager. Commands go straight
// to the manager; engine events reach clients through manager listeners
// that feed the hub:
//
//	scene.state_changed  automation.StateChange
//	action.settled       automation.Settlement
//
// # Errors
//
// Domain sentinels map to status codes in writeDomainError. Error bodies are
//
//	{"error": {"code": "conflict", "message": "..."}}
//
// # Security
//
// The operator logs in with POST /api/v1/auth/login and sends the returned
// token as a Bearer header. WebSocket connections redeem a single-use ticket
// from POST /api/v1/auth/ws-ticket so the token never appears in a URL.
package api
