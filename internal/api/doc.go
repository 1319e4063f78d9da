// Package api implements the HTTP REST API and WebSocket server for the
// Tasmota discovery service.
//
// This package provides:
//   - REST endpoints for registry devices and discovered Tasmota devices
//   - Commands: bus scan, switching outputs, saving a discovery into the registry
//   - WebSocket hub relaying state changes and device announcements
//   - An audit trail of operator actions
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API sits beside the Tasmota bridge. Reads come from the bridge's
// confirmed store and the device registry; commands go to the bridge,
// which publishes them over MQTT. Feedback arrives asynchronously on the
// bus and is pushed to WebSocket subscribers on the "device.new_state" and
// "tasmota.new_device" channels.
//
// # Security
//
// Every route except health and metrics requires a bearer token signed
// with the configured secret. The token's role gates each route through
// the permission table in the auth package. WebSocket connections use
// single-use tickets so the token never appears in a URL.
package api
