// Package server provides the embedded status server.
//
// This package is internal to AquaPoll and handles all HTTP concerns:
//
//   - Status page serving: Serves the embedded HTML/CSS/JS page at "/"
//   - REST API: JSON endpoints at "/api/state" and "/api/stats"
//   - Server-Sent Events: Real-time snapshot updates at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the aquapoll library should not need to interact with this
// package directly. The server is started automatically by
// [aquapoll.Controller.Start] when a status port is configured.
package server
