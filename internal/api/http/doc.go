// Package http implements the generation API surface.
//
// Endpoints:
//   - POST /api/generate: run the pipeline for the caller's session. Returns
//     the generated envelope, 401 with an OAuth redirect when a tool
//     connection is missing, 400 on request validation failures, 500
//     otherwise.
//   - GET /api/preview: render the session's current component to its
//     iframe-ready document via a transient bridge mount.
//   - GET /api/connections: live connection status for the tool catalog.
//   - POST /api/connect/:toolId: initiate or confirm a tool authorization;
//     confirming replays any prompt parked during the round-trip.
//
// Sessions are addressed by the X-Session-ID header and scoped to the
// caller's entity id.
package http
